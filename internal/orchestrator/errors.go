package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for well-known failure modes, spec.md §7's taxonomy.
var (
	ErrStrictModeViolation = errors.New("orchestrator: strict-mode barrier found fatal diagnostics")
	ErrNoSuchPlugin        = errors.New("orchestrator: no such plugin")
	ErrDuplicatePlugin     = errors.New("orchestrator: plugin name already registered")
)

// PluginCycleError reports a dependency cycle detected at startup within one
// phase, spec.md §4.4.2.
type PluginCycleError struct {
	Phase Phase
	Cycle []string // plugin names forming the cycle, in order
}

func (e *PluginCycleError) Error() string {
	return fmt.Sprintf("orchestrator: dependency cycle in phase %s: %s", e.Phase, strings.Join(e.Cycle, " -> "))
}

// EnrichmentOverrun reports that the ENRICHMENT dependency-propagation
// re-queue pass did not reach a fixpoint within the configured iteration
// cap, spec.md §4.4.2.
type EnrichmentOverrun struct {
	MaxIterations int
	Pending       []string // plugin names still queued when the cap was hit
}

func (e *EnrichmentOverrun) Error() string {
	return fmt.Sprintf("orchestrator: enrichment did not converge within %d iteration(s), pending: %s",
		e.MaxIterations, strings.Join(e.Pending, ", "))
}
