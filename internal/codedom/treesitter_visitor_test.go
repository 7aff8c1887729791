package codedom

import (
	"testing"

	"graphkb/internal/graphmodel"
)

func TestTreeSitterVisitorExtractsFunctionsAndCalls(t *testing.T) {
	src := []byte(`package foo

func helper() int {
	return 1
}

func main() {
	helper()
	fmt.Println("hi")
}
`)
	v := NewTreeSitterVisitor()
	defer v.Close()

	out, err := v.Visit("foo.go", src)
	if err != nil {
		t.Fatalf("Visit: %v", err)
	}

	var funcNames []string
	for _, n := range out.Nodes {
		if n.Kind == graphmodel.KindFunction {
			funcNames = append(funcNames, n.Attributes["name"].(string))
		}
	}
	if len(funcNames) != 2 {
		t.Fatalf("functions = %v, want [helper main]", funcNames)
	}

	var sawResolvedCall, sawExternalCall bool
	for _, e := range out.Edges {
		if e.Kind != graphmodel.EdgeCalls {
			continue
		}
		if e.Dst == graphmodel.ExternalModuleID("Println") {
			sawExternalCall = true
		}
		for _, n := range out.Nodes {
			if n.ID == e.Dst && n.Kind == graphmodel.KindFunction && n.Attributes["name"] == "helper" {
				sawResolvedCall = true
			}
		}
	}
	if !sawResolvedCall {
		t.Errorf("expected a CALLS edge resolving to the same-file helper() function")
	}
	if !sawExternalCall {
		t.Errorf("expected a CALLS edge to an EXTERNAL_MODULE placeholder for fmt.Println")
	}
}

func TestTreeSitterVisitorExtractsImports(t *testing.T) {
	src := []byte(`package foo

import (
	"fmt"
	"os"
)

func main() { fmt.Println(os.Args) }
`)
	v := NewTreeSitterVisitor()
	defer v.Close()

	out, err := v.Visit("foo.go", src)
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

func TestTreeSitterVisitorNonGoFileIsEmpty(t *testing.T) {
	v := NewTreeSitterVisitor()
	defer v.Close()

	out, err := v.Visit("x.py", []byte("def foo(): pass"))
	if err != nil {
		t.Fatalf("Visit: %v", err)
	}
	if len(out.Nodes) != 0 || len(out.Edges) != 0 {
		t.Errorf("expected empty Visited for a non-.go file, got %+v", out)
	}
}
