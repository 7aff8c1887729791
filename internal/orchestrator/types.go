// Package orchestrator implements the phased, dependency-ordered plugin
// pipeline (spec.md §4.4): it turns a set of input files into graph
// mutations, with per-phase barriers, a strict-mode diagnostic model, and a
// resource registry for cross-plugin coordination. Grounded on the
// teacher's internal/tools Tool/Registry pair, generalized from a flat
// name→tool map into a phase-ordered, dependency-sorted pipeline.
package orchestrator

import "context"

// Phase is one of the five ordered stages a plugin runs in.
type Phase string

const (
	PhaseDiscovery  Phase = "DISCOVERY"
	PhaseIndexing   Phase = "INDEXING"
	PhaseAnalysis   Phase = "ANALYSIS"
	PhaseEnrichment Phase = "ENRICHMENT"
	PhaseValidation Phase = "VALIDATION"
)

// phaseOrder is the strict run order, spec.md §4.4.2.
var phaseOrder = []Phase{PhaseDiscovery, PhaseIndexing, PhaseAnalysis, PhaseEnrichment, PhaseValidation}

// Metadata is a plugin's static declaration, spec.md §4.4.1.
type Metadata struct {
	Name         string
	Phase        Phase
	Creates      []string // node/edge kinds this plugin may produce
	Dependencies []string // names of plugins that must have run first
	Covers       []string // external package names this plugin analyses (coverage validation)
	Deprecated   string   // non-empty: a deprecation message; plugin still runs
	Exclusive    bool     // true: never run concurrently with other plugins in its phase
}

// Plugin is one unit of work within a phase.
type Plugin interface {
	Metadata() Metadata
	Execute(ctx context.Context, pc *Context) (Result, error)
}

// Result is what a plugin reports back, spec.md §4.4.1.
type Result struct {
	NodesCreated int
	EdgesCreated int
	Summary      string
	Errors       []Diagnostic
}

// Severity classifies a Diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityFatal   Severity = "fatal"
)

// Diagnostic is one strict-mode or validation finding, spec.md §4.4.4/§4.4.5.
type Diagnostic struct {
	Code       string
	Severity   Severity
	Plugin     string
	File       string
	Line       int
	Message    string
	Suggestion string
}

// Report is the orchestrator's run-wide summary.
type Report struct {
	Diagnostics []Diagnostic
	FatalCount  int
	PluginRuns  int
}
