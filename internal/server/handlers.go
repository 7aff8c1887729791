package server

import (
	"errors"

	"graphkb/internal/datalog"
	"graphkb/internal/graph"
	"graphkb/internal/graphmodel"
	"graphkb/internal/wire"
)

func (s *Server) handleAddNode(req wire.Request) wire.Response {
	if req.Node == nil {
		return errorResponse(req.RequestID, wire.ErrIO, "AddNode requires a node")
	}
	if err := s.store.AddNode(toNode(*req.Node)); err != nil {
		return storeErrorResponse(req.RequestID, err)
	}
	return okResponse(req.RequestID)
}

func (s *Server) handleAddNodes(req wire.Request) wire.Response {
	batch := make([]graphmodel.Node, len(req.Nodes))
	for i, n := range req.Nodes {
		batch[i] = toNode(n)
	}
	if err := s.store.AddNodes(batch); err != nil {
		return storeErrorResponse(req.RequestID, err)
	}
	return okResponse(req.RequestID)
}

func (s *Server) handleAddEdge(req wire.Request) wire.Response {
	if req.Edge == nil {
		return errorResponse(req.RequestID, wire.ErrIO, "AddEdge requires an edge")
	}
	if err := s.store.AddEdge(toEdge(*req.Edge)); err != nil {
		return storeErrorResponse(req.RequestID, err)
	}
	return okResponse(req.RequestID)
}

func (s *Server) handleAddEdges(req wire.Request) wire.Response {
	batch := make([]graphmodel.Edge, len(req.Edges))
	for i, e := range req.Edges {
		batch[i] = toEdge(e)
	}
	if err := s.store.AddEdges(batch); err != nil {
		return storeErrorResponse(req.RequestID, err)
	}
	return okResponse(req.RequestID)
}

func (s *Server) handleFlush(req wire.Request) wire.Response {
	if err := s.store.Flush(); err != nil {
		return storeErrorResponse(req.RequestID, err)
	}
	return okResponse(req.RequestID)
}

func (s *Server) handleClear(req wire.Request) wire.Response {
	if err := s.store.Clear(); err != nil {
		return storeErrorResponse(req.RequestID, err)
	}
	return okResponse(req.RequestID)
}

func (s *Server) handleGetNode(req wire.Request) wire.Response {
	n, ok := s.store.GetNode(req.ID)
	if !ok {
		return errorResponse(req.RequestID, wire.ErrNotFound, "node not found: "+req.ID)
	}
	na := fromNode(n)
	return wire.Response{RequestID: req.RequestID, Kind: wire.RespNodeRecord, Node: &na, Found: true}
}

func (s *Server) handleFindByType(req wire.Request) wire.Response {
	nodes := s.store.FindByType(req.TypeKind)
	out := make([]wire.NodeArg, len(nodes))
	for i, n := range nodes {
		out[i] = fromNode(n)
	}
	return wire.Response{RequestID: req.RequestID, Kind: wire.RespNodeBatch, Nodes: out}
}

func (s *Server) handleOutgoingEdges(req wire.Request) wire.Response {
	edges := s.store.GetOutgoingEdges(req.ID, req.Kinds...)
	out := make([]wire.EdgeArg, len(edges))
	for i, e := range edges {
		out[i] = fromEdge(e)
	}
	return wire.Response{RequestID: req.RequestID, Kind: wire.RespEdgeBatch, Edges: out}
}

func (s *Server) handleIncomingEdges(req wire.Request) wire.Response {
	edges := s.store.GetIncomingEdges(req.ID, req.Kinds...)
	out := make([]wire.EdgeArg, len(edges))
	for i, e := range edges {
		out[i] = fromEdge(e)
	}
	return wire.Response{RequestID: req.RequestID, Kind: wire.RespEdgeBatch, Edges: out}
}

func (s *Server) handleCountNodesByType(req wire.Request) wire.Response {
	return wire.Response{RequestID: req.RequestID, Kind: wire.RespCountMap, Counts: s.store.CountNodesByType()}
}

func (s *Server) handleCountEdgesByType(req wire.Request) wire.Response {
	return wire.Response{RequestID: req.RequestID, Kind: wire.RespCountMap, Counts: s.store.CountEdgesByType()}
}

func (s *Server) snapshotRules() []datalog.Rule {
	s.rulesMu.RLock()
	defer s.rulesMu.RUnlock()
	return append([]datalog.Rule{}, s.rules...)
}

func (s *Server) handleCheckGuarantee(req wire.Request) wire.Response {
	ev := datalog.NewEvaluatorWithRules(s.store, req.Explain, s.snapshotRules())
	res, err := ev.CheckGuarantee(req.RuleSource)
	if err != nil {
		return datalogErrorResponse(req.RequestID, err)
	}
	return violationsResponse(req.RequestID, res)
}

func (s *Server) handleDatalogQuery(req wire.Request) wire.Response {
	ev := datalog.NewEvaluatorWithRules(s.store, req.Explain, s.snapshotRules())
	res, err := ev.Query(req.Query)
	if err != nil {
		return datalogErrorResponse(req.RequestID, err)
	}
	return datalogResultsResponse(req.RequestID, res)
}

func (s *Server) handleExecuteDatalog(req wire.Request) wire.Response {
	ev := datalog.NewEvaluatorWithRules(s.store, req.Explain, s.snapshotRules())
	res, err := ev.ExecuteDatalog(req.Source)
	if err != nil {
		return datalogErrorResponse(req.RequestID, err)
	}
	return datalogResultsResponse(req.RequestID, res)
}

func (s *Server) handleDatalogLoadRules(req wire.Request) wire.Response {
	prog, err := datalog.ParseProgram(req.Source)
	if err != nil {
		return datalogErrorResponse(req.RequestID, err)
	}
	s.rulesMu.Lock()
	s.rules = append(s.rules, prog.Rules...)
	s.rulesMu.Unlock()
	return okResponse(req.RequestID)
}

func (s *Server) handleDatalogClearRules(req wire.Request) wire.Response {
	s.rulesMu.Lock()
	s.rules = nil
	s.rulesMu.Unlock()
	return okResponse(req.RequestID)
}

func storeErrorResponse(requestID string, err error) wire.Response {
	code := wire.ErrIO
	if errors.Is(err, graph.ErrDanglingEdge) {
		code = wire.ErrDangling
	} else if errors.Is(err, graph.ErrNotFound) {
		code = wire.ErrNotFound
	}
	return errorResponse(requestID, code, err.Error())
}

func datalogErrorResponse(requestID string, err error) wire.Response {
	return errorResponse(requestID, wire.ErrParse, err.Error())
}

func bindingSets(bindings []datalog.Binding) []wire.BindingSet {
	out := make([]wire.BindingSet, len(bindings))
	for i, b := range bindings {
		out[i] = wire.BindingSet{Bindings: map[string]string(b)}
	}
	return out
}

func violationsResponse(requestID string, res datalog.QueryResult) wire.Response {
	resp := wire.Response{RequestID: requestID, Kind: wire.RespViolations, Violations: bindingSets(res.Bindings)}
	attachExplain(&resp, res)
	return resp
}

func datalogResultsResponse(requestID string, res datalog.QueryResult) wire.Response {
	resp := wire.Response{RequestID: requestID, Kind: wire.RespDatalogResults, Results: bindingSets(res.Bindings)}
	attachExplain(&resp, res)
	return resp
}

// attachExplain populates resp.Explain only when the originating request
// opted in, per spec.md §4.3's backward-compatibility rule — a client that
// never sends `explain: true` never receives an ExplainResult-shaped
// payload, even nested.
func attachExplain(resp *wire.Response, res datalog.QueryResult) {
	if !res.Explain {
		return
	}
	steps := make([]wire.ExplainStep, len(res.Steps))
	for i, st := range res.Steps {
		steps[i] = wire.ExplainStep{
			Index:      st.Index,
			Predicate:  st.Predicate,
			Args:       st.Args,
			BindingsN:  st.BindingsN,
			ElapsedMic: st.ElapsedMic,
			Detail:     st.Detail,
		}
	}
	resp.Explain = &wire.ExplainPayload{
		Bindings: bindingSets(res.Bindings),
		Steps:    steps,
		Stats: wire.ExplainStats{
			NodesVisited:    res.Stats.NodesVisited,
			EdgesTraversed:  res.Stats.EdgesTraversed,
			StoreOpCalls:    res.Stats.StoreOpCalls,
			ResultRows:      res.Stats.ResultRows,
			RuleEvaluations: res.Stats.RuleEvaluations,
			Cardinalities:   res.Stats.Cardinalities,
		},
		Profile: wire.ExplainProfile{
			TotalMicros: res.Profile.TotalMicros,
			ByPredicate: res.Profile.ByPredicate,
		},
	}
	resp.Kind = wire.RespExplainResult
}
