// Package wire defines the Graph Server's request/response payloads and
// their length-prefixed MessagePack framing (spec.md §6.1). Grounded on the
// teacher's internal/mcp transport pattern (pendingReqs map keyed by
// request ID, one reader goroutine per connection) adapted from
// line-delimited JSON-RPC over stdio to binary length-prefixed frames over
// a Unix domain socket.
package wire

// Request is the envelope every client message arrives in. Kind is the
// discriminator naming which optional field group is populated; the
// optional fields carry `omitempty` tags, so unused ones are left off the
// wire. msgpack round-trips Go zero values correctly without those tags;
// they only reduce payload size.
type Request struct {
	RequestID string `msgpack:"requestId"`
	Kind      string `msgpack:"kind"`

	Node  *NodeArg  `msgpack:"node,omitempty"`
	Nodes []NodeArg `msgpack:"nodes,omitempty"`
	Edge  *EdgeArg  `msgpack:"edge,omitempty"`
	Edges []EdgeArg `msgpack:"edges,omitempty"`

	ID       string   `msgpack:"id,omitempty"`
	TypeKind string   `msgpack:"typeKind,omitempty"` // FindByType's kind argument
	Kinds    []string `msgpack:"kinds,omitempty"`    // edge-kind filter for Outgoing/IncomingEdges

	RuleSource string `msgpack:"ruleSource,omitempty"`
	Query      string `msgpack:"query,omitempty"`
	Source     string `msgpack:"source,omitempty"`
	Explain    bool   `msgpack:"explain,omitempty"`
}

// NodeArg/EdgeArg mirror graphmodel.Node/Edge in wire-safe, flat form (no
// pointer fields, so msgpack round-trips them without custom codecs).
type NodeArg struct {
	ID         string         `msgpack:"id"`
	Kind       string         `msgpack:"kind"`
	File       string         `msgpack:"file,omitempty"`
	Line       int            `msgpack:"line,omitempty"`
	Column     int            `msgpack:"column,omitempty"`
	Attributes map[string]any `msgpack:"attributes,omitempty"`
}

type EdgeArg struct {
	Src        string         `msgpack:"src"`
	Dst        string         `msgpack:"dst"`
	Kind       string         `msgpack:"kind"`
	Attributes map[string]any `msgpack:"attributes,omitempty"`
}

// Request kind discriminators, spec.md §4.3.
const (
	KindAddNode  = "AddNode"
	KindAddNodes = "AddNodes"
	KindAddEdge  = "AddEdge"
	KindAddEdges = "AddEdges"
	KindFlush    = "Flush"
	KindClear    = "Clear"

	KindGetNode          = "GetNode"
	KindFindByType       = "FindByType"
	KindOutgoingEdges    = "OutgoingEdges"
	KindIncomingEdges    = "IncomingEdges"
	KindCountNodesByType = "CountNodesByType"
	KindCountEdgesByType = "CountEdgesByType"

	KindCheckGuarantee    = "CheckGuarantee"
	KindDatalogQuery      = "DatalogQuery"
	KindExecuteDatalog    = "ExecuteDatalog"
	KindDatalogLoadRules  = "DatalogLoadRules"
	KindDatalogClearRules = "DatalogClearRules"
)

// Response is the envelope every server message arrives in. Exactly one of
// the payload fields is meaningful per response Kind; ExplainResult is only
// ever populated when the originating request had Explain=true (spec.md
// §4.3's wire-compatibility rule).
type Response struct {
	RequestID string `msgpack:"requestId"`
	Kind      string `msgpack:"kind"`

	Node   *NodeArg       `msgpack:"node,omitempty"`
	Nodes  []NodeArg      `msgpack:"nodes"`
	Edges  []EdgeArg      `msgpack:"edges"`
	Counts map[string]int `msgpack:"counts,omitempty"`
	Found  bool           `msgpack:"found,omitempty"`

	Violations []BindingSet `msgpack:"violations"`
	Results    []BindingSet `msgpack:"results"`

	Explain *ExplainPayload `msgpack:"explain,omitempty"`

	ErrorCode    string `msgpack:"errorCode,omitempty"`
	ErrorMessage string `msgpack:"errorMessage,omitempty"`
}

// Response kind discriminators.
const (
	RespNodeRecord     = "NodeRecord"
	RespNodeBatch      = "NodeBatch"
	RespEdgeBatch      = "EdgeBatch"
	RespCountMap       = "CountMap"
	RespOk             = "Ok"
	RespViolations     = "Violations"
	RespDatalogResults = "DatalogResults"
	RespExplainResult  = "ExplainResult"
	RespError          = "Error"
)

// BindingSet is one Datalog result row: variable name to its bound value.
type BindingSet struct {
	Bindings map[string]string `msgpack:"bindings"`
}

// ExplainPayload carries the evaluator's instrumentation, §4.2.3.
type ExplainPayload struct {
	Bindings []BindingSet   `msgpack:"bindings"`
	Steps    []ExplainStep  `msgpack:"steps"`
	Stats    ExplainStats   `msgpack:"stats"`
	Profile  ExplainProfile `msgpack:"profile"`
}

type ExplainStep struct {
	Index      int      `msgpack:"index"`
	Predicate  string   `msgpack:"predicate"`
	Args       []string `msgpack:"args"`
	BindingsN  int      `msgpack:"bindingsN"`
	ElapsedMic int64    `msgpack:"elapsedMicros"`
	Detail     string   `msgpack:"detail,omitempty"`
}

type ExplainStats struct {
	NodesVisited    int            `msgpack:"nodesVisited"`
	EdgesTraversed  int            `msgpack:"edgesTraversed"`
	StoreOpCalls    map[string]int `msgpack:"storeOpCalls"`
	ResultRows      int            `msgpack:"resultRows"`
	RuleEvaluations int            `msgpack:"ruleEvaluations"`
	Cardinalities   []int          `msgpack:"cardinalities"`
}

type ExplainProfile struct {
	TotalMicros int64            `msgpack:"totalMicros"`
	ByPredicate map[string]int64 `msgpack:"byPredicate"`
}

// Well-known error codes.
const (
	ErrUnknownRequest = "UNKNOWN_REQUEST"
	ErrParse          = "PARSE_ERROR"
	ErrDangling       = "DANGLING_EDGE"
	ErrIO             = "IO_ERROR"
	ErrNotFound       = "NOT_FOUND"
)
