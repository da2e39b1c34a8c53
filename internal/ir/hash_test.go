package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeIDDeterministic(t *testing.T) {
	a, err := OutcomeID("run-1", 0, "Svc.fn(1)")
	require.NoError(t, err)
	b, err := OutcomeID("run-1", 0, "Svc.fn(1)")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestOutcomeIDDistinguishesInputs(t *testing.T) {
	base, err := OutcomeID("run-1", 0, "Svc.fn(1)")
	require.NoError(t, err)

	otherRun, err := OutcomeID("run-2", 0, "Svc.fn(1)")
	require.NoError(t, err)
	otherIndex, err := OutcomeID("run-1", 1, "Svc.fn(1)")
	require.NoError(t, err)

	assert.NotEqual(t, base, otherRun)
	assert.NotEqual(t, base, otherIndex)
}

func TestArgsHashStableUnderKeyOrder(t *testing.T) {
	a, err := ArgsHash([]Literal{Structured{Value: IRObject{"a": IRInt(1), "b": IRInt(2)}}})
	require.NoError(t, err)
	b, err := ArgsHash([]Literal{Structured{Value: IRObject{"b": IRInt(2), "a": IRInt(1)}}})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
