package testutil

// FixedRunID is the run ID FixedRunIDGenerator returns when none is given.
const FixedRunID = "00000000-0000-7000-8000-000000000001"

// FixedRunIDGenerator returns the same run ID every time.
//
// Unlike engine.FixedGenerator, which hands out IDs in order, this generator
// never runs out, so a scenario that resets and restarts a test still
// produces byte-identical traces.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator for id, or FixedRunID if id is
// empty.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = FixedRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run ID.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
