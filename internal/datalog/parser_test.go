package datalog

import "testing"

func TestParseQuerySingleAtom(t *testing.T) {
	lits, err := ParseQuery(`node(X, "FUNCTION")`)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	if len(lits) != 1 {
		t.Fatalf("got %d literals, want 1", len(lits))
	}
	if lits[0].Atom.Predicate != "node" {
		t.Errorf("predicate = %q, want node", lits[0].Atom.Predicate)
	}
	if len(lits[0].Atom.Args) != 2 {
		t.Fatalf("got %d args, want 2", len(lits[0].Atom.Args))
	}
	if lits[0].Atom.Args[0].Kind != TermVar || lits[0].Atom.Args[0].Name != "X" {
		t.Errorf("arg0 = %+v, want var X", lits[0].Atom.Args[0])
	}
	if lits[0].Atom.Args[1].Kind != TermConst || lits[0].Atom.Args[1].Value != "FUNCTION" {
		t.Errorf("arg1 = %+v, want const FUNCTION", lits[0].Atom.Args[1])
	}
}

func TestParseQueryConjunctionWithNegationAndWildcard(t *testing.T) {
	src := `node(X, "FUNCTION"), \+ edge(X, _, "CALLS")`
	lits, err := ParseQuery(src)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	if len(lits) != 2 {
		t.Fatalf("got %d literals, want 2", len(lits))
	}
	if !lits[1].Negated {
		t.Errorf("second literal should be negated")
	}
	if lits[1].Atom.Args[1].Kind != TermWildcard {
		t.Errorf("expected wildcard in second position, got %+v", lits[1].Atom.Args[1])
	}
}

func TestParseQueryIgnoresLineComments(t *testing.T) {
	src := "node(X, \"FUNCTION\") % trailing comment\n"
	lits, err := ParseQuery(src)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	if len(lits) != 1 {
		t.Fatalf("got %d literals, want 1", len(lits))
	}
}

func TestParseProgramRule(t *testing.T) {
	src := `uncalled(X) :- node(X, "FUNCTION"), \+ edge(_, X, "CALLS").`
	prog, err := ParseProgram(src)
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	if len(prog.Rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(prog.Rules))
	}
	r := prog.Rules[0]
	if r.Head.Predicate != "uncalled" {
		t.Errorf("head predicate = %q, want uncalled", r.Head.Predicate)
	}
	if len(r.Body) != 2 {
		t.Fatalf("got %d body literals, want 2", len(r.Body))
	}
}

func TestParseProgramMultipleRules(t *testing.T) {
	src := `
	a(X) :- node(X, "FUNCTION").
	b(X) :- a(X), node(X, "FUNCTION").
	`
	prog, err := ParseProgram(src)
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	if len(prog.Rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(prog.Rules))
	}
}

func TestParseErrorCarriesPosition(t *testing.T) {
	_, err := ParseQuery(`node(X, )`)
	if err == nil {
		t.Fatalf("expected a parse error")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("error = %T, want *ParseError", err)
	}
	if pe.Pos == 0 {
		t.Errorf("expected a non-zero position")
	}
}

func TestIsProgramSource(t *testing.T) {
	if IsProgramSource(`node(X, "FUNCTION")`) {
		t.Errorf("bare conjunction should not look like a program")
	}
	if !IsProgramSource(`a(X) :- node(X, "FUNCTION").`) {
		t.Errorf("rule should look like a program")
	}
}
