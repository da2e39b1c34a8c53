package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cronrun/internal/ir"
)

func noop(context.Context, ...ir.Literal) error { return nil }

func newTestRegistry() *Registry {
	r := New([]string{"OrderService", "UserService", "GhostService"})
	r.Register("OrderService", OperationSet{"sync": noop})
	r.Register("UserService", OperationSet{"ping": noop, "list": noop})
	r.Register("RogueService", OperationSet{"run": noop})
	return r
}

func TestAuthorize(t *testing.T) {
	r := newTestRegistry()

	require.NoError(t, r.Authorize("OrderService"))

	err := r.Authorize("RogueService")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Unknown or unallowed service: RogueService", err.Error())
}

func TestResolveRegistered(t *testing.T) {
	r := newTestRegistry()

	svc, err := r.Resolve("OrderService")
	require.NoError(t, err)
	op, ok := svc.Lookup("sync")
	require.True(t, ok)
	assert.NoError(t, op(context.Background()))
}

func TestResolveAllowedButMissing(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Resolve("GhostService")
	require.Error(t, err)
	assert.True(t, IsServiceNotFound(err))
	assert.False(t, IsUnauthorized(err))
}

func TestResolveChecksAllowList(t *testing.T) {
	r := newTestRegistry()

	// Registered but not allowed.
	_, err := r.Resolve("RogueService")
	assert.True(t, IsUnauthorized(err))
}

func TestOperationUnknownFunction(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Operation("UserService", "delete")
	require.Error(t, err)
	assert.True(t, IsUnknownFunction(err))
	assert.Equal(t, "Unknown function: UserService.delete", err.Error())

	op, err := r.Operation("UserService", "ping")
	require.NoError(t, err)
	assert.NotNil(t, op)
}

func TestOperationSetNilEntryIsMissing(t *testing.T) {
	set := OperationSet{"broken": nil}
	_, ok := set.Lookup("broken")
	assert.False(t, ok)
}

func TestListing(t *testing.T) {
	r := newTestRegistry()

	assert.Equal(t, []string{"GhostService", "OrderService", "UserService"}, r.Allowed())
	assert.True(t, r.IsAllowed("UserService"))
	assert.False(t, r.IsAllowed("RogueService"))

	ops, ok := r.OperationNames("UserService")
	require.True(t, ok)
	assert.Equal(t, []string{"list", "ping"}, ops)

	_, ok = r.OperationNames("GhostService")
	assert.False(t, ok)
}
