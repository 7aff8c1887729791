package datalog

import (
	"fmt"
	"time"

	"graphkb/internal/graph"
	"graphkb/internal/logging"
)

// QueryResult is the outcome of evaluating a query. Stats/Profile/Steps are
// only populated when the evaluator was constructed with explain enabled,
// per spec.md §4.2.3.
type QueryResult struct {
	Bindings []Binding
	Explain  bool
	Steps    []Step
	Stats    Stats
	Profile  Profile
}

// Evaluator runs queries against one Store. An instance is single-threaded
// per query (spec.md §5): callers needing concurrent queries must use
// distinct Evaluator instances. It also owns the persistent rule set
// installed via LoadRules/ClearRules (DatalogLoadRules/DatalogClearRules on
// the wire, spec.md §4.3).
type Evaluator struct {
	store   *graph.Store
	explain bool

	persistent []Rule
}

// NewEvaluator constructs an Evaluator over store. explain fixes whether
// every query run through it records instrumentation.
func NewEvaluator(store *graph.Store, explain bool) *Evaluator {
	return &Evaluator{store: store, explain: explain}
}

// NewEvaluatorWithRules constructs an Evaluator preloaded with a persistent
// rule set, a snapshot copy so the caller's slice and the Evaluator's never
// alias. The Graph Server uses this to hand each query its own Evaluator
// instance (spec.md §5: "an EvaluatorExplain instance owns mutable trace
// state and must not be shared across concurrent queries") while keeping
// the persistent rule set itself under the server's own synchronization.
func NewEvaluatorWithRules(store *graph.Store, explain bool, rules []Rule) *Evaluator {
	return &Evaluator{store: store, explain: explain, persistent: append([]Rule{}, rules...)}
}

// Rules returns the Evaluator's persistent rule set.
func (e *Evaluator) Rules() []Rule {
	return e.persistent
}

// LoadRules parses src as a rule program and adds its rules to the
// persistent set, available to every subsequent query this Evaluator runs.
func (e *Evaluator) LoadRules(src string) error {
	prog, err := ParseProgram(src)
	if err != nil {
		return err
	}
	e.persistent = append(e.persistent, prog.Rules...)
	return nil
}

// ClearRules empties the persistent rule set.
func (e *Evaluator) ClearRules() {
	e.persistent = nil
}

// Query parses src as a literal conjunction (DatalogQuery, spec.md §4.3,
// sends a single atom) and evaluates it against the persistent rule set.
func (e *Evaluator) Query(src string) (QueryResult, error) {
	lits, err := ParseQuery(src)
	if err != nil {
		return QueryResult{}, err
	}
	return e.evaluate(lits, nil)
}

// ExecuteDatalog evaluates src, which is either a rule program (the first
// rule's head becomes the query, per spec.md §4.3) or a bare conjunction of
// literals. CheckGuarantee is required to behave identically for rule
// programs (spec.md §9's "Open Questions") so both requests call this one
// method.
func (e *Evaluator) ExecuteDatalog(src string) (QueryResult, error) {
	if !IsProgramSource(src) {
		lits, err := ParseQuery(src)
		if err != nil {
			return QueryResult{}, err
		}
		return e.evaluate(lits, nil)
	}

	prog, err := ParseProgram(src)
	if err != nil {
		return QueryResult{}, err
	}
	if len(prog.Rules) == 0 {
		return QueryResult{}, &ParseError{Message: "rule program contains no rules"}
	}
	head := prog.Rules[0].Head
	query := []Literal{{Atom: head}}
	return e.evaluate(query, prog.Rules)
}

// CheckGuarantee is the wire-level alias for ExecuteDatalog over a rule
// program: compile rule_source, run the first rule's head as the query.
func (e *Evaluator) CheckGuarantee(ruleSrc string) (QueryResult, error) {
	return e.ExecuteDatalog(ruleSrc)
}

// evaluate runs the conjunction algorithm of spec.md §4.2.2 for query,
// treating extraRules (from an ad hoc program) as additional derived-rule
// definitions layered on top of the Evaluator's persistent rule set.
func (e *Evaluator) evaluate(query []Literal, extraRules []Rule) (QueryResult, error) {
	timer := logging.StartTimer(logging.CategoryDatalog, "evaluate")
	defer timer.Stop()

	var ex *explainState
	if e.explain {
		ex = newExplainState()
	}

	allRules := append(append([]Rule{}, e.persistent...), extraRules...)
	derived := e.deriveFixpoint(allRules, ex)

	bindings := []Binding{{}}
	if ex != nil {
		ex.recordCardinality(1)
	}

	for _, lit := range query {
		next, err := e.stepLiteral(bindings, lit, derived, ex)
		if err != nil {
			return QueryResult{}, err
		}
		bindings = next
		if ex != nil {
			ex.recordCardinality(len(bindings))
		}
	}

	result := QueryResult{Bindings: bindings, Explain: e.explain}
	if ex != nil {
		result.Steps = ex.steps
		result.Stats = ex.stats
		result.Profile = ex.profile
	}
	return result, nil
}

// stepLiteral extends each binding in carrier by evaluating lit, per the
// per-literal substitute-dispatch-merge step of spec.md §4.2.2.
func (e *Evaluator) stepLiteral(carrier []Binding, lit Literal, derived map[string][]Binding, ex *explainState) ([]Binding, error) {
	var out []Binding
	for _, b := range carrier {
		substituted := substitute(lit.Atom, b)

		start := time.Now()
		results, err := e.dispatch(substituted, derived)
		if err != nil {
			return nil, err
		}
		ex.recordDispatch(lit.Atom.Predicate, substituted.Args, len(results), time.Since(start), "")

		if lit.Negated {
			if len(results) == 0 {
				out = append(out, b)
			}
			continue
		}
		for _, r := range results {
			merged, ok := unifyResult(b, r)
			if ok {
				out = append(out, merged)
			}
		}
	}
	return out, nil
}

// dispatch routes a substituted atom to a builtin or to the derived-fact
// table computed by deriveFixpoint. An unresolved (unknown) predicate name
// returns the empty binding set, per spec.md §4.2.1.
func (e *Evaluator) dispatch(atom Atom, derived map[string][]Binding) ([]Binding, error) {
	if IsBuiltin(atom.Predicate) {
		return dispatchBuiltin(e.store, atom)
	}
	facts := derived[atom.Predicate]
	var out []Binding
	for _, fact := range facts {
		b, ok := matchFact(atom, fact)
		if ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// matchFact unifies atom's argument list against a derived fact's binding
// of its head's variable names (see deriveFixpoint), returning the bindings
// for atom's own free variables.
func matchFact(atom Atom, fact Binding) (Binding, bool) {
	out := Binding{}
	for i, t := range atom.Args {
		key := fmt.Sprintf("$%d", i)
		factVal, ok := fact[key]
		if !ok {
			return nil, false
		}
		switch t.Kind {
		case TermWildcard:
			continue
		case TermConst:
			if t.Value != factVal {
				return nil, false
			}
		case TermVar:
			if existing, ok := out[t.Name]; ok {
				if existing != factVal {
					return nil, false
				}
			} else {
				out[t.Name] = factVal
			}
		}
	}
	return out, true
}

// deriveFixpoint computes, for every predicate defined by rules, the set of
// derived facts reachable by repeatedly evaluating rule bodies until no
// rule produces a new fact (a full-recomputation fixpoint rather than a
// delta-based semi-naive one — simpler, and correct under the same
// stratification assumption spec.md §4.2.2 already requires of callers).
// Each fact is stored as a Binding keyed "$0", "$1", … over the rule head's
// argument positions, so distinct rules for the same predicate name and
// differently-named head variables still compare correctly.
func (e *Evaluator) deriveFixpoint(rules []Rule, ex *explainState) map[string][]Binding {
	if len(rules) == 0 {
		return nil
	}
	facts := make(map[string][]Binding)
	seen := make(map[string]map[string]bool)

	for {
		changed := false
		for _, rule := range rules {
			results := e.evaluateBody(rule.Body, facts, ex)
			pred := rule.Head.Predicate
			if seen[pred] == nil {
				seen[pred] = make(map[string]bool)
			}
			for _, b := range results {
				fact := headFact(rule.Head, b)
				key := factKey(fact)
				if seen[pred][key] {
					continue
				}
				seen[pred][key] = true
				facts[pred] = append(facts[pred], fact)
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return facts
}

// evaluateBody runs the conjunction algorithm over a rule body, dispatching
// derived-predicate literals against the facts table being built so far
// (the current fixpoint iterate).
func (e *Evaluator) evaluateBody(body []Literal, facts map[string][]Binding, ex *explainState) []Binding {
	bindings := []Binding{{}}
	for _, lit := range body {
		var out []Binding
		for _, b := range bindings {
			substituted := substitute(lit.Atom, b)

			start := time.Now()
			var results []Binding
			if IsBuiltin(substituted.Predicate) {
				results, _ = dispatchBuiltin(e.store, substituted)
			} else {
				for _, fact := range facts[substituted.Predicate] {
					if m, ok := matchFact(substituted, fact); ok {
						results = append(results, m)
					}
				}
			}
			ex.recordDispatch(lit.Atom.Predicate, substituted.Args, len(results), time.Since(start), "rule body")

			if lit.Negated {
				if len(results) == 0 {
					out = append(out, b)
				}
				continue
			}
			for _, r := range results {
				if merged, ok := unifyResult(b, r); ok {
					out = append(out, merged)
				}
			}
		}
		bindings = out
	}
	return bindings
}

// headFact projects a rule head's argument list through binding b into the
// "$i"-keyed fact representation deriveFixpoint stores.
func headFact(head Atom, b Binding) Binding {
	fact := make(Binding, len(head.Args))
	for i, t := range head.Args {
		key := fmt.Sprintf("$%d", i)
		switch t.Kind {
		case TermConst:
			fact[key] = t.Value
		case TermVar:
			fact[key] = b[t.Name]
		case TermWildcard:
			fact[key] = ""
		}
	}
	return fact
}

func factKey(fact Binding) string {
	s := ""
	for i := 0; ; i++ {
		key := fmt.Sprintf("$%d", i)
		v, ok := fact[key]
		if !ok {
			break
		}
		s += v + "\x00"
	}
	return s
}
