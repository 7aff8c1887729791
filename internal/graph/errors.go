package graph

import "errors"

// Sentinel errors for the Graph Store, matching the fatal/error taxonomy in
// spec.md §7 ("fails with DanglingEdge at flush; fails with IoError on
// underlying storage errors").
var (
	// ErrDanglingEdge is returned by Flush when one or more buffered edges
	// still lack an existing endpoint after resolution was attempted.
	ErrDanglingEdge = errors.New("graph: dangling edge endpoint at flush")

	// ErrNotFound is returned by lookups that find nothing; most callers
	// should prefer the (value, bool) form and only see this when an error
	// return is unavoidable.
	ErrNotFound = errors.New("graph: node not found")

	// ErrIO wraps underlying storage errors from the SQLite-backed
	// persistence layer.
	ErrIO = errors.New("graph: storage I/O error")
)
