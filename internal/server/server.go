// Package server implements the Graph Server (spec.md §4.3): a Unix domain
// socket process wrapping one Store and one Evaluator, enforcing
// single-writer/fenced-reads semantics over the length-prefixed MessagePack
// wire protocol. Grounded on the teacher's internal/mcp transport pattern
// (accept loop + per-connection reader, pending-request bookkeeping)
// adapted from line-delimited stdio JSON-RPC to a real socket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"graphkb/internal/datalog"
	"graphkb/internal/graph"
	"graphkb/internal/graphmodel"
	"graphkb/internal/logging"
	"graphkb/internal/wire"
)

// writeKinds lists request kinds serialised behind the single-writer token,
// per spec.md §4.3.
var writeKinds = map[string]bool{
	wire.KindAddNode:           true,
	wire.KindAddNodes:          true,
	wire.KindAddEdge:           true,
	wire.KindAddEdges:          true,
	wire.KindFlush:             true,
	wire.KindClear:             true,
	wire.KindDatalogLoadRules:  true,
	wire.KindDatalogClearRules: true,
}

// Server owns one Store and serves the socket protocol to any number of
// concurrent client connections.
type Server struct {
	store *graph.Store

	// writeSem is a 1-buffered channel used as a FIFO-ish mutex: acquiring
	// it means "holding the single-writer token." Modelled this way
	// (rather than a sync.Mutex) per spec.md's "buffered channel acting as
	// a mutex-with-queueing" binding, so write requests queue explicitly
	// rather than relying on runtime mutex fairness.
	writeSem chan struct{}

	rulesMu sync.RWMutex
	rules   []datalog.Rule

	listener net.Listener
	wg       sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}
}

// New constructs a Server over an already-open Store.
func New(store *graph.Store) *Server {
	sem := make(chan struct{}, 1)
	sem <- struct{}{}
	return &Server{
		store:    store,
		writeSem: sem,
		done:     make(chan struct{}),
	}
}

// ListenAndServe binds socketPath, accepting connections until ctx is
// cancelled. It returns once the listener is closed and in-flight
// connections have drained, per spec.md §4.3's lifecycle ("drains in-flight
// requests and closes the Store" is the caller's responsibility after
// ListenAndServe returns).
func (s *Server) ListenAndServe(ctx context.Context, socketPath string) error {
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", socketPath, err)
	}
	s.listener = ln
	logging.Get(logging.CategoryServer).Sugar().Infof("listening on %s", socketPath)

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				s.wg.Wait()
				return nil
			default:
				return fmt.Errorf("server: accept: %w", err)
			}
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// Close stops accepting new connections and signals in-flight connection
// handlers to finish their current request and exit.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
	})
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	log := logging.Get(logging.CategoryServer).Sugar()
	for {
		select {
		case <-s.done:
			return
		default:
		}

		req, err := wire.ReadRequest(conn)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Debugf("connection reader exiting: %v", err)
			}
			return
		}

		resp := s.handle(req)
		if err := wire.WriteResponse(conn, resp); err != nil {
			log.Debugf("connection writer exiting: %v", err)
			return
		}
	}
}

// handle dispatches one request to completion and builds its response.
// Read-kind requests run directly against the Store, which already
// guarantees each individual operation is atomic with respect to writers
// (graph.Store.mu); write-kind requests additionally acquire the
// single-writer token so that distinct write requests from different
// connections never interleave, satisfying the per-connection and
// cross-connection ordering guarantees of spec.md §5.
func (s *Server) handle(req wire.Request) wire.Response {
	if req.RequestID == "" {
		req.RequestID = newUUID()
	}
	if writeKinds[req.Kind] {
		<-s.writeSem
		defer func() { s.writeSem <- struct{}{} }()
	}

	switch req.Kind {
	case wire.KindAddNode:
		return s.handleAddNode(req)
	case wire.KindAddNodes:
		return s.handleAddNodes(req)
	case wire.KindAddEdge:
		return s.handleAddEdge(req)
	case wire.KindAddEdges:
		return s.handleAddEdges(req)
	case wire.KindFlush:
		return s.handleFlush(req)
	case wire.KindClear:
		return s.handleClear(req)
	case wire.KindGetNode:
		return s.handleGetNode(req)
	case wire.KindFindByType:
		return s.handleFindByType(req)
	case wire.KindOutgoingEdges:
		return s.handleOutgoingEdges(req)
	case wire.KindIncomingEdges:
		return s.handleIncomingEdges(req)
	case wire.KindCountNodesByType:
		return s.handleCountNodesByType(req)
	case wire.KindCountEdgesByType:
		return s.handleCountEdgesByType(req)
	case wire.KindCheckGuarantee:
		return s.handleCheckGuarantee(req)
	case wire.KindDatalogQuery:
		return s.handleDatalogQuery(req)
	case wire.KindExecuteDatalog:
		return s.handleExecuteDatalog(req)
	case wire.KindDatalogLoadRules:
		return s.handleDatalogLoadRules(req)
	case wire.KindDatalogClearRules:
		return s.handleDatalogClearRules(req)
	default:
		return errorResponse(req.RequestID, wire.ErrUnknownRequest, fmt.Sprintf("unknown request kind %q", req.Kind))
	}
}

func errorResponse(requestID, code, message string) wire.Response {
	return wire.Response{RequestID: requestID, Kind: wire.RespError, ErrorCode: code, ErrorMessage: message}
}

func okResponse(requestID string) wire.Response {
	return wire.Response{RequestID: requestID, Kind: wire.RespOk}
}

func toNode(a wire.NodeArg) graphmodel.Node {
	n := graphmodel.Node{ID: a.ID, Kind: a.Kind, Attributes: a.Attributes}
	if a.File != "" {
		n.Location = &graphmodel.Location{File: a.File, Line: a.Line, Column: a.Column}
	}
	return n
}

func fromNode(n graphmodel.Node) wire.NodeArg {
	a := wire.NodeArg{ID: n.ID, Kind: n.Kind, Attributes: n.Attributes}
	if n.Location != nil {
		a.File, a.Line, a.Column = n.Location.File, n.Location.Line, n.Location.Column
	}
	return a
}

func toEdge(a wire.EdgeArg) graphmodel.Edge {
	return graphmodel.Edge{Src: a.Src, Dst: a.Dst, Kind: a.Kind, Attributes: a.Attributes}
}

func fromEdge(e graphmodel.Edge) wire.EdgeArg {
	return wire.EdgeArg{Src: e.Src, Dst: e.Dst, Kind: e.Kind, Attributes: e.Attributes}
}

func newUUID() string {
	return uuid.NewString()
}
