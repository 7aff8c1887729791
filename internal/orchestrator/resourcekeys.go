package orchestrator

// Well-known Resources keys shared between the orchestrator core and the
// built-in plugins (internal/orchestrator/builtin): the core must know
// these names to seed/collect them, even though the values themselves are
// produced and consumed entirely by plugins.
const (
	// ResourceRoots holds the []string root paths Run was called with,
	// seeded before the DISCOVERY phase.
	ResourceRoots = "input.roots"

	// ResourceCovers accumulates every run plugin's Metadata.Covers list,
	// appended automatically after each plugin's Execute returns. The
	// coverage validation plugin reads it back at VALIDATION time.
	ResourceCovers = "coverage.covers"
)
