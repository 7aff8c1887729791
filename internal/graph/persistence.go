package graph

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"graphkb/internal/graphmodel"
	"graphkb/internal/logging"
)

// initSchema creates the nodes/edges tables and their indices if absent.
// Grounded on the teacher's internal/store.local_core.go createTables
// pattern (CREATE TABLE IF NOT EXISTS followed by CREATE INDEX IF NOT
// EXISTS), adapted to the two-table node/edge model.
func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS nodes (
		id     TEXT PRIMARY KEY,
		kind   TEXT NOT NULL,
		file   TEXT,
		line   INTEGER,
		column INTEGER,
		attrs  TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(kind);

	CREATE TABLE IF NOT EXISTS edges (
		src   TEXT NOT NULL,
		dst   TEXT NOT NULL,
		kind  TEXT NOT NULL,
		attrs TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (src, dst, kind)
	);
	CREATE INDEX IF NOT EXISTS idx_edges_src ON edges(src);
	CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(dst);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: create schema: %v", ErrIO, err)
	}
	return nil
}

// rehydrate loads every persisted node and edge into the in-memory indices.
// Called once at Open, giving restart-survival for file-backed stores per
// spec.md §6.2. Dangling edges found on disk (endpoints that no longer
// exist, e.g. a hand-edited database) are buffered into pending rather than
// dropped, same as a fresh AddEdge would.
func (s *Store) rehydrate() error {
	timer := logging.StartTimer(logging.CategoryStore, "rehydrate")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	nodeRows, err := s.db.Query(`SELECT id, kind, file, line, column, attrs FROM nodes`)
	if err != nil {
		return fmt.Errorf("%w: rehydrate nodes: %v", ErrIO, err)
	}
	defer nodeRows.Close()

	for nodeRows.Next() {
		var (
			id, kind, attrsJSON string
			file                sql.NullString
			line, col           sql.NullInt64
		)
		if err := nodeRows.Scan(&id, &kind, &file, &line, &col, &attrsJSON); err != nil {
			return fmt.Errorf("%w: scan node: %v", ErrIO, err)
		}
		n := graphmodel.Node{ID: id, Kind: kind}
		if file.Valid {
			n.Location = &graphmodel.Location{File: file.String, Line: int(line.Int64), Column: int(col.Int64)}
		}
		if attrsJSON != "" && attrsJSON != "{}" {
			attrs := make(map[string]any)
			if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
				return fmt.Errorf("%w: decode node attrs for %s: %v", ErrIO, id, err)
			}
			n.Attributes = attrs
		}
		cp := n
		s.nodes[id] = &cp
		s.indexKindLocked(id, kind)
	}
	if err := nodeRows.Err(); err != nil {
		return fmt.Errorf("%w: iterate nodes: %v", ErrIO, err)
	}

	edgeRows, err := s.db.Query(`SELECT src, dst, kind, attrs FROM edges`)
	if err != nil {
		return fmt.Errorf("%w: rehydrate edges: %v", ErrIO, err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var src, dst, kind, attrsJSON string
		if err := edgeRows.Scan(&src, &dst, &kind, &attrsJSON); err != nil {
			return fmt.Errorf("%w: scan edge: %v", ErrIO, err)
		}
		e := graphmodel.Edge{Src: src, Dst: dst, Kind: kind}
		if attrsJSON != "" && attrsJSON != "{}" {
			attrs := make(map[string]any)
			if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
				return fmt.Errorf("%w: decode edge attrs for %s: %v", ErrIO, e.Key(), err)
			}
			e.Attributes = attrs
		}
		key := e.Key()
		if s.bothEndpointsExistLocked(e) {
			s.indexEdgeLocked(key, e)
		} else {
			s.pending[key] = &e
		}
	}
	if err := edgeRows.Err(); err != nil {
		return fmt.Errorf("%w: iterate edges: %v", ErrIO, err)
	}
	return nil
}

// persistNodes upserts a batch of nodes to SQLite. It does not require s.mu:
// the db handle is already serialized to a single connection (SetMaxOpenConns(1)),
// so concurrent callers queue at the database/sql level rather than needing
// the in-memory mutex.
func (s *Store) persistNodes(batch []graphmodel.Node) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin node tx: %v", ErrIO, err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO nodes (id, kind, file, line, column, attrs) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind   = excluded.kind,
			file   = COALESCE(excluded.file, nodes.file),
			line   = COALESCE(excluded.line, nodes.line),
			column = COALESCE(excluded.column, nodes.column),
			attrs  = excluded.attrs
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: prepare node upsert: %v", ErrIO, err)
	}
	defer stmt.Close()

	for _, n := range batch {
		attrsJSON, err := json.Marshal(n.Attributes)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: encode attrs for %s: %v", ErrIO, n.ID, err)
		}
		var file sql.NullString
		var line, col sql.NullInt64
		if n.Location != nil {
			file = sql.NullString{String: n.Location.File, Valid: true}
			line = sql.NullInt64{Int64: int64(n.Location.Line), Valid: true}
			col = sql.NullInt64{Int64: int64(n.Location.Column), Valid: true}
		}
		if _, err := stmt.Exec(n.ID, n.Kind, file, line, col, string(attrsJSON)); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: upsert node %s: %v", ErrIO, n.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit node tx: %v", ErrIO, err)
	}
	return nil
}

// persistEdges upserts a batch of already-committed edges (both endpoints
// known to exist) to SQLite. See persistNodes for the locking rationale.
func (s *Store) persistEdges(batch []graphmodel.Edge) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin edge tx: %v", ErrIO, err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO edges (src, dst, kind, attrs) VALUES (?, ?, ?, ?)
		ON CONFLICT(src, dst, kind) DO UPDATE SET attrs = excluded.attrs
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: prepare edge upsert: %v", ErrIO, err)
	}
	defer stmt.Close()

	for _, e := range batch {
		attrsJSON, err := json.Marshal(e.Attributes)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: encode attrs for %s: %v", ErrIO, e.Key(), err)
		}
		if _, err := stmt.Exec(e.Src, e.Dst, e.Kind, string(attrsJSON)); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: upsert edge %s: %v", ErrIO, e.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit edge tx: %v", ErrIO, err)
	}
	return nil
}
