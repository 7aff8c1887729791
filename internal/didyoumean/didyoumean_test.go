package didyoumean

import "testing"

func TestDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"FUNCTION", "FUNCTION", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"FUNCTON", "FUNCTION", 1},
		{"CLAS", "CLASS", 1},
		{"kitten", "sitting", 3},
	}
	for _, c := range cases {
		if got := Distance(c.a, c.b); got != c.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestSuggestPrefersExactCaseVariant(t *testing.T) {
	got, ok := Suggest("function", []string{"FUNCTION", "CLASS"}, DefaultThreshold)
	if !ok || got != "FUNCTION" {
		t.Fatalf("Suggest(function) = %q, %v, want FUNCTION, true", got, ok)
	}
}

func TestSuggestWithinThreshold(t *testing.T) {
	got, ok := Suggest("FUNCTON", []string{"FUNCTION", "CLASS", "INTERFACE"}, DefaultThreshold)
	if !ok || got != "FUNCTION" {
		t.Fatalf("Suggest(FUNCTON) = %q, %v, want FUNCTION, true", got, ok)
	}
}

func TestSuggestBeyondThresholdReturnsFalse(t *testing.T) {
	_, ok := Suggest("ZZZZZZZZZZ", []string{"FUNCTION", "CLASS"}, DefaultThreshold)
	if ok {
		t.Fatalf("expected no suggestion beyond threshold")
	}
}

func TestSuggestExcludesExactSelfMatch(t *testing.T) {
	_, ok := Suggest("FUNCTION", []string{"FUNCTION"}, DefaultThreshold)
	if ok {
		t.Fatalf("expected no suggestion when the only candidate is an identical match")
	}
}

func TestKindsInQuery(t *testing.T) {
	query := `node(X, "FUNCTION"), edge(X, Y, "CALLS"), incoming(Y, Z, "CLASS")`
	got := KindsInQuery(query)
	want := []string{"FUNCTION", "CALLS", "CLASS"}
	if len(got) != len(want) {
		t.Fatalf("KindsInQuery = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("KindsInQuery = %v, want %v", got, want)
		}
	}
}

func TestSuggestKindsSkipsAvailableKinds(t *testing.T) {
	query := `node(X, "FUNCTON")`
	available := map[string]int{"FUNCTION": 3, "CLASS": 1}
	hints := SuggestKinds(query, available)
	if len(hints) != 1 {
		t.Fatalf("got %d hints, want 1: %v", len(hints), hints)
	}
}

func TestSuggestKindsNoHintWhenKindAvailable(t *testing.T) {
	query := `node(X, "FUNCTION")`
	available := map[string]int{"FUNCTION": 3}
	hints := SuggestKinds(query, available)
	if len(hints) != 0 {
		t.Fatalf("expected no hints for an already-available kind, got %v", hints)
	}
}

func TestSuggestPredicate(t *testing.T) {
	known := []string{"all_funcs", "uncalled", "path"}
	if got := SuggestPredicate("all_func", known); got != "all_funcs" {
		t.Fatalf("SuggestPredicate(all_func) = %q, want all_funcs", got)
	}
	if got := SuggestPredicate("zzzzzzzzzz", known); got != "" {
		t.Fatalf("SuggestPredicate(zzzzzzzzzz) = %q, want \"\"", got)
	}
}
