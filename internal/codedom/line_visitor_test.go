package codedom

import (
	"testing"

	"graphkb/internal/graphmodel"
)

func TestLineVisitorGoFunctionsAndStructs(t *testing.T) {
	src := []byte(`package foo

func Bar() int {
	return 1
}

type Widget struct {
	Name string
}

func (w *Widget) Greet() string {
	return w.Name
}
`)
	v := LineVisitor{}
	out, err := v.Visit("foo.go", src)
	if err != nil {
		t.Fatalf("Visit: %v", err)
	}

	var funcs, structs, modules int
	for _, n := range out.Nodes {
		switch n.Kind {
		case graphmodel.KindFunction:
			funcs++
		case graphmodel.KindClass:
			structs++
		case graphmodel.KindModule:
			modules++
		}
	}
	if modules != 1 {
		t.Errorf("modules = %d, want 1", modules)
	}
	if funcs != 2 {
		t.Errorf("funcs = %d, want 2 (Bar, Greet)", funcs)
	}
	if structs != 1 {
		t.Errorf("structs = %d, want 1 (Widget)", structs)
	}

	for _, e := range out.Edges {
		if e.Kind != graphmodel.EdgeContains {
			t.Errorf("unexpected edge kind %q", e.Kind)
		}
	}
}

func TestLineVisitorExtractsImports(t *testing.T) {
	src := []byte(`package foo

import (
	"fmt"
	"os"
)

func Bar() { fmt.Println(os.Args) }
`)
	out, err := (LineVisitor{}).Visit("foo.go", src)
	if err != nil {
		t.Fatalf("Visit: %v", err)
	}

	var sources []string
	for _, n := range out.Nodes {
		if n.Kind == graphmodel.KindImport {
			sources = append(sources, n.Attributes["source"].(string))
		}
	}
	if len(sources) != 2 {
		t.Fatalf("imports = %v, want [fmt os]", sources)
	}
}

func TestLineVisitorUnknownExtensionReturnsEmpty(t *testing.T) {
	out, err := (LineVisitor{}).Visit("README.md", []byte("# hello"))
	if err != nil {
		t.Fatalf("Visit: %v", err)
	}
	if len(out.Nodes) != 0 || len(out.Edges) != 0 {
		t.Errorf("expected empty Visited for an unrecognised extension, got %+v", out)
	}
}

func TestLineVisitorDeterministicIDs(t *testing.T) {
	src := []byte("func Bar() {}\n")
	v := LineVisitor{}
	a, err := v.Visit("x.go", src)
	if err != nil {
		t.Fatalf("Visit: %v", err)
	}
	b, err := v.Visit("x.go", src)
	if err != nil {
		t.Fatalf("Visit: %v", err)
	}
	if len(a.Nodes) != len(b.Nodes) {
		t.Fatalf("non-deterministic node count: %d vs %d", len(a.Nodes), len(b.Nodes))
	}
	for i := range a.Nodes {
		if a.Nodes[i].ID != b.Nodes[i].ID {
			t.Errorf("node ID changed across re-analysis: %q vs %q", a.Nodes[i].ID, b.Nodes[i].ID)
		}
	}
}
