// Package graphmodel defines the node/edge types shared by the Graph Store,
// the Datalog Evaluator, and the Orchestrator: a tagged record model per
// spec.md §3.1, with deterministic identifier construction per §3.1's
// discipline.
package graphmodel

import "fmt"

// Node kind vocabulary is open: these are the kinds spec.md names explicitly,
// not an exhaustive closed set. Plugins may introduce new kinds (e.g.
// "db:query", "http:route") without a code change here.
const (
	KindModule           = "MODULE"
	KindFunction         = "FUNCTION"
	KindClass            = "CLASS"
	KindInterface        = "INTERFACE"
	KindImport           = "IMPORT"
	KindCall             = "CALL"
	KindConstructorCall  = "CONSTRUCTOR_CALL"
	KindVariable         = "VARIABLE"
	KindLiteral          = "LITERAL"
	KindExpression       = "EXPRESSION"
	KindIssue            = "ISSUE"
	KindExternalModule   = "EXTERNAL_MODULE"
)

// Edge kind vocabulary is closed per spec.md §3.1.
const (
	EdgeContains       = "CONTAINS"
	EdgeCalls          = "CALLS"
	EdgeImportsFrom    = "IMPORTS_FROM"
	EdgeExtends        = "EXTENDS"
	EdgeImplements     = "IMPLEMENTS"
	EdgeAssignedFrom   = "ASSIGNED_FROM"
	EdgeDerivesFrom    = "DERIVES_FROM"
	EdgePassesArgument = "PASSES_ARGUMENT"
	EdgeUses           = "USES"
	EdgeReturns        = "RETURNS"
	EdgeExecutesQuery  = "EXECUTES_QUERY"
	EdgeAffects        = "AFFECTS"
)

// Location is a node's position in source. Nil/zero for nodes with no
// source position (external placeholders, graph-wide issues).
type Location struct {
	File   string
	Line   int
	Column int
}

// Node is a tagged record: a stable ID, a kind drawn from the open
// vocabulary above, an optional source location, and an attribute map whose
// values are strings or numbers (spec.md §3.2 "Attribute types").
type Node struct {
	ID         string
	Kind       string
	Location   *Location
	Attributes map[string]any
}

// Edge is a directed, typed arc keyed on (Src, Dst, Kind) per spec.md §3.1.
type Edge struct {
	Src, Dst, Kind string
	Attributes     map[string]any
}

// Key returns the edge's identity key, used for idempotent writes.
func (e Edge) Key() string {
	return e.Src + "\x00" + e.Dst + "\x00" + e.Kind
}

// NodeID constructs a deterministic node identifier from (file, kind, name,
// line), per spec.md §3.1's identifier discipline: re-analysis of
// unchanged source must yield the same ID.
func NodeID(file, kind, name string, line int) string {
	return fmt.Sprintf("%s:%s:%s:%d", file, kind, name, line)
}

// ExternalModuleID constructs the synthetic ID for a placeholder node
// representing a reference that crosses out of the analysed source, per
// spec.md §3.3.
func ExternalModuleID(pkg string) string {
	return KindExternalModule + ":" + pkg
}

// IsString reports whether an attribute value is a string (as opposed to a
// number), enforcing the "no nested structures" invariant's two allowed
// shapes at the call site that builds attribute maps.
func IsString(v any) bool {
	_, ok := v.(string)
	return ok
}

// IsNumber reports whether an attribute value is a number.
func IsNumber(v any) bool {
	switch v.(type) {
	case int, int64, float64, float32:
		return true
	default:
		return false
	}
}
