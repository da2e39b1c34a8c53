package testutil

// FixedRunID hands out the same run ID on every call.
//
// Use it when a test runs a single batch and wants stable journal rows and
// outcome IDs; engine.FixedGenerator covers the multi-run case.
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a generator for id.
// An empty id becomes "test-run-default".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed run ID.
func (g *FixedRunID) Generate() string {
	return g.id
}
