// Package codedom supplies concrete SourceVisitor implementations: the
// source-to-node front-end spec.md treats as an external collaborator,
// specifying only its interface to the orchestrator. Grounded on the
// teacher's internal/tools/codedom/elements.go regex scanner and on
// internal/world/ast_treesitter.go's tree-sitter node walking.
package codedom

import (
	"graphkb/internal/graphmodel"
)

// Visited is one source file's contribution to the graph: the nodes and
// edges a SourceVisitor extracted from it, ready for an ANALYSIS-phase
// plugin to hand to its Batcher.
type Visited struct {
	Nodes []graphmodel.Node
	Edges []graphmodel.Edge
}

// SourceVisitor turns one file's content into graph nodes/edges. The
// orchestrator's ANALYSIS-phase plugin drives one per file; which
// implementation runs for a given path is the plugin's choice, not this
// package's — both implementations here are swappable behind this single
// interface, per SPEC_FULL.md §4.4.8.
type SourceVisitor interface {
	// Visit parses content (the file at path) and returns the nodes and
	// edges it contributes. A visitor that cannot make sense of path's
	// extension returns a zero Visited and a nil error — being unable to
	// parse a file is not itself a failure of the pipeline.
	Visit(path string, content []byte) (Visited, error)
}

// CompositeVisitor prefers TreeSitter for .go files and falls back to
// LineVisitor for everything else (including when the tree-sitter grammar
// produced nothing), per SPEC_FULL.md §4.4.8.
type CompositeVisitor struct {
	TreeSitter *TreeSitterVisitor
	Line       LineVisitor
}

// NewCompositeVisitor builds a CompositeVisitor with its own TreeSitter
// parser instance.
func NewCompositeVisitor() *CompositeVisitor {
	return &CompositeVisitor{TreeSitter: NewTreeSitterVisitor(), Line: LineVisitor{}}
}

// Close releases the underlying tree-sitter parser.
func (c *CompositeVisitor) Close() {
	c.TreeSitter.Close()
}

// Visit implements SourceVisitor.
func (c *CompositeVisitor) Visit(path string, content []byte) (Visited, error) {
	out, err := c.TreeSitter.Visit(path, content)
	if err != nil {
		return Visited{}, err
	}
	if len(out.Nodes) > 0 {
		return out, nil
	}
	return c.Line.Visit(path, content)
}
