// Package graph implements the Graph Store (spec.md §4.1): the authoritative
// in-process property graph with indexed lookup and atomic batch apply.
//
// Grounded on the teacher's internal/store.LocalStore (SQLite-backed,
// mutex-guarded, category-logged operations) adapted to this package's
// node/edge domain instead of the teacher's knowledge_graph/vectors tables.
package graph

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"graphkb/internal/graphmodel"
	"graphkb/internal/logging"
)

// Store holds the authoritative node and edge set. All exported methods are
// safe for concurrent use. ClearWhileIterating (calling Clear concurrently
// with an in-progress FindByType/edge iteration) is unspecified behavior —
// callers must not mix them, matching spec.md §4.1's documented choice.
type Store struct {
	mu sync.RWMutex

	db *sql.DB

	nodes map[string]*graphmodel.Node
	edges map[string]*graphmodel.Edge // keyed by Edge.Key()

	byKind map[string]map[string]struct{} // kind -> node IDs
	bySrc  map[string]map[string]struct{} // node ID -> edge keys, outgoing
	byDst  map[string]map[string]struct{} // node ID -> edge keys, incoming

	// pending holds edges buffered because one or both endpoints did not
	// exist at AddEdge time. This realizes the "defer" dangling-edge policy
	// spec.md §9 prefers: plugins legitimately create edges before the
	// target node has been buffered by a co-running plugin.
	pending map[string]*graphmodel.Edge
}

// Open creates (or reopens) a Store backed by a SQLite database at path. An
// empty path opens an in-memory database with no restart-survival guarantee,
// used by tests and by short-lived analysis runs that don't need §6.2's
// persistence contract.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrIO, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.Get(logging.CategoryStore).Sugar().Debugf("set journal_mode=WAL failed: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.Get(logging.CategoryStore).Sugar().Debugf("set synchronous=NORMAL failed: %v", err)
	}

	s := &Store{
		db:      db,
		nodes:   make(map[string]*graphmodel.Node),
		edges:   make(map[string]*graphmodel.Edge),
		byKind:  make(map[string]map[string]struct{}),
		bySrc:   make(map[string]map[string]struct{}),
		byDst:   make(map[string]map[string]struct{}),
		pending: make(map[string]*graphmodel.Edge),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.rehydrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddNode writes or updates a node by ID. Attributes merge last-writer-wins
// per key (spec.md §3.4). No edge validation happens here.
func (s *Store) AddNode(node graphmodel.Node) error {
	return s.AddNodes([]graphmodel.Node{node})
}

// AddNodes writes or updates a batch of nodes atomically with respect to the
// in-memory indices (a reader never observes half the batch).
func (s *Store) AddNodes(batch []graphmodel.Node) error {
	timer := logging.StartTimer(logging.CategoryStore, "AddNodes")
	defer timer.Stop()

	s.mu.Lock()
	merged := make([]graphmodel.Node, len(batch))
	for i, n := range batch {
		s.addNodeLocked(n)
		merged[i] = *s.nodes[n.ID]
	}
	s.mu.Unlock()

	// Persist the post-merge snapshot, not the raw input, so a partial
	// attribute update never clobbers previously-persisted attributes.
	return s.persistNodes(merged)
}

func (s *Store) addNodeLocked(n graphmodel.Node) {
	existing, ok := s.nodes[n.ID]
	if !ok {
		cp := n
		if n.Attributes != nil {
			cp.Attributes = make(map[string]any, len(n.Attributes))
			for k, v := range n.Attributes {
				cp.Attributes[k] = v
			}
		}
		s.nodes[n.ID] = &cp
		s.indexKindLocked(n.ID, n.Kind)
		return
	}

	// Last-writer-wins per attribute key; everything else about the node
	// (kind, location) is effectively immutable post-commit per spec.md
	// §3.4, but we accept a later kind/location write defensively rather
	// than silently dropping it.
	if n.Kind != "" && n.Kind != existing.Kind {
		s.unindexKindLocked(n.ID, existing.Kind)
		existing.Kind = n.Kind
		s.indexKindLocked(n.ID, n.Kind)
	}
	if n.Location != nil {
		existing.Location = n.Location
	}
	if existing.Attributes == nil {
		existing.Attributes = make(map[string]any)
	}
	for k, v := range n.Attributes {
		existing.Attributes[k] = v
	}
}

func (s *Store) indexKindLocked(id, kind string) {
	set, ok := s.byKind[kind]
	if !ok {
		set = make(map[string]struct{})
		s.byKind[kind] = set
	}
	set[id] = struct{}{}
}

func (s *Store) unindexKindLocked(id, kind string) {
	if set, ok := s.byKind[kind]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(s.byKind, kind)
		}
	}
}

// AddEdge records a single edge. See AddEdges.
func (s *Store) AddEdge(edge graphmodel.Edge) error {
	return s.AddEdges([]graphmodel.Edge{edge})
}

// AddEdges records a batch of edges. An edge whose endpoints both already
// exist commits immediately; otherwise it is buffered until Flush, per the
// deferred dangling-edge policy documented on Store.
func (s *Store) AddEdges(batch []graphmodel.Edge) error {
	timer := logging.StartTimer(logging.CategoryStore, "AddEdges")
	defer timer.Stop()

	s.mu.Lock()
	var toPersist []graphmodel.Edge
	for _, e := range batch {
		if s.commitEdgeIfReadyLocked(e) {
			toPersist = append(toPersist, *s.edges[e.Key()])
		}
	}
	s.mu.Unlock()

	// Persist the post-merge snapshot, same rationale as AddNodes.
	return s.persistEdges(toPersist)
}

// commitEdgeIfReadyLocked commits e if both endpoints exist, else buffers it
// in pending. Returns true if it committed (and thus needs persisting).
func (s *Store) commitEdgeIfReadyLocked(e graphmodel.Edge) bool {
	key := e.Key()
	if _, ok := s.pending[key]; ok && s.bothEndpointsExistLocked(e) {
		delete(s.pending, key)
	}
	if !s.bothEndpointsExistLocked(e) {
		s.pending[key] = &e
		return false
	}
	s.indexEdgeLocked(key, e)
	return true
}

func (s *Store) bothEndpointsExistLocked(e graphmodel.Edge) bool {
	_, srcOK := s.nodes[e.Src]
	_, dstOK := s.nodes[e.Dst]
	return srcOK && dstOK
}

func (s *Store) indexEdgeLocked(key string, e graphmodel.Edge) {
	if existing, ok := s.edges[key]; ok {
		// Idempotent re-add: merge attributes last-writer-wins, same as nodes.
		if existing.Attributes == nil {
			existing.Attributes = make(map[string]any)
		}
		for k, v := range e.Attributes {
			existing.Attributes[k] = v
		}
		return
	}
	cp := e
	s.edges[key] = &cp

	if s.bySrc[e.Src] == nil {
		s.bySrc[e.Src] = make(map[string]struct{})
	}
	s.bySrc[e.Src][key] = struct{}{}

	if s.byDst[e.Dst] == nil {
		s.byDst[e.Dst] = make(map[string]struct{})
	}
	s.byDst[e.Dst][key] = struct{}{}
}

// GetNode returns the node and true, or the zero value and false.
func (s *Store) GetNode(id string) (graphmodel.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return graphmodel.Node{}, false
	}
	return *n, true
}

// FindByType returns all nodes of the given kind. Ordering is not
// guaranteed, per spec.md §4.1.
func (s *Store) FindByType(kind string) []graphmodel.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byKind[kind]
	out := make([]graphmodel.Node, 0, len(ids))
	for id := range ids {
		out = append(out, *s.nodes[id])
	}
	return out
}

// AllNodes returns every committed node. Used by the Datalog evaluator's
// node/2 built-in when neither argument is bound to a constant.
func (s *Store) AllNodes() []graphmodel.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]graphmodel.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, *n)
	}
	return out
}

// AllEdges returns every committed edge. Used by the Datalog evaluator's
// edge/3 and incoming/3 built-ins when neither endpoint is bound.
func (s *Store) AllEdges() []graphmodel.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]graphmodel.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, *e)
	}
	return out
}

// GetOutgoingEdges returns edges whose Src is id, optionally filtered to
// kinds. A nil/empty kinds filter returns all kinds.
func (s *Store) GetOutgoingEdges(id string, kinds ...string) []graphmodel.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterEdgesLocked(s.bySrc[id], kinds)
}

// GetIncomingEdges returns edges whose Dst is id, optionally filtered to
// kinds.
func (s *Store) GetIncomingEdges(id string, kinds ...string) []graphmodel.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterEdgesLocked(s.byDst[id], kinds)
}

func (s *Store) filterEdgesLocked(keys map[string]struct{}, kinds []string) []graphmodel.Edge {
	out := make([]graphmodel.Edge, 0, len(keys))
	for key := range keys {
		e := s.edges[key]
		if e == nil {
			continue
		}
		if len(kinds) > 0 && !containsStr(kinds, e.Kind) {
			continue
		}
		out = append(out, *e)
	}
	return out
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// CountNodesByType aggregates node counts per kind. Zero-count kinds are
// omitted, per spec.md §4.1.
func (s *Store) CountNodesByType() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.byKind))
	for kind, ids := range s.byKind {
		if len(ids) > 0 {
			out[kind] = len(ids)
		}
	}
	return out
}

// CountEdgesByType aggregates committed edge counts per kind.
func (s *Store) CountEdgesByType() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int)
	for _, e := range s.edges {
		out[e.Kind]++
	}
	return out
}

// Flush materialises buffered edges: any pending edge whose endpoints now
// exist is committed; any that remain dangling are rejected (dropped from
// pending) and reported via a single wrapped ErrDanglingEdge.
func (s *Store) Flush() error {
	timer := logging.StartTimer(logging.CategoryStore, "Flush")
	defer timer.Stop()

	s.mu.Lock()
	var resolved, dangling []graphmodel.Edge
	for key, e := range s.pending {
		if s.bothEndpointsExistLocked(*e) {
			s.indexEdgeLocked(key, *e)
			resolved = append(resolved, *e)
			delete(s.pending, key)
		} else {
			dangling = append(dangling, *e)
			delete(s.pending, key)
		}
	}
	s.mu.Unlock()

	if err := s.persistEdges(resolved); err != nil {
		return err
	}

	if len(dangling) > 0 {
		logging.Get(logging.CategoryStore).Sugar().Warnf("flush: %d dangling edges rejected", len(dangling))
		return fmt.Errorf("%w: %d edge(s) still missing an endpoint", ErrDanglingEdge, len(dangling))
	}
	return nil
}

// Clear removes all nodes and edges, in memory and on disk, atomically with
// respect to other Store calls (but see the ClearWhileIterating caveat on
// the Store doc comment).
func (s *Store) Clear() error {
	timer := logging.StartTimer(logging.CategoryStore, "Clear")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]*graphmodel.Node)
	s.edges = make(map[string]*graphmodel.Edge)
	s.byKind = make(map[string]map[string]struct{})
	s.bySrc = make(map[string]map[string]struct{})
	s.byDst = make(map[string]map[string]struct{})
	s.pending = make(map[string]*graphmodel.Edge)

	if _, err := s.db.Exec(`DELETE FROM nodes`); err != nil {
		return fmt.Errorf("%w: clear nodes: %v", ErrIO, err)
	}
	if _, err := s.db.Exec(`DELETE FROM edges`); err != nil {
		return fmt.Errorf("%w: clear edges: %v", ErrIO, err)
	}
	return nil
}
