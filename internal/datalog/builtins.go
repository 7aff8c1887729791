package datalog

import (
	"strings"

	"graphkb/internal/graph"
	"graphkb/internal/graphmodel"
)

// builtinNames is the fixed predicate vocabulary the evaluator dispatches
// directly, per spec.md §4.2.1. Anything else is derived.
var builtinNames = map[string]bool{
	"node":            true,
	"edge":            true,
	"incoming":        true,
	"attr":            true,
	"attr_edge":       true,
	"path":            true,
	"neq":             true,
	"starts_with":     true,
	"not_starts_with": true,
}

// IsBuiltin reports whether name is dispatched directly rather than treated
// as a user-defined derived predicate.
func IsBuiltin(name string) bool {
	return builtinNames[name]
}

// BuiltinNames lists the fixed predicate vocabulary, as candidates for
// did-you-mean suggestions over predicate names. The order is not defined.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinNames))
	for n := range builtinNames {
		names = append(names, n)
	}
	return names
}

// dispatchBuiltin evaluates a fully-substituted builtin atom (constants in
// place of every already-bound variable) against the store, returning one
// Binding per result row for the atom's remaining free variables.
func dispatchBuiltin(store *graph.Store, atom Atom) ([]Binding, error) {
	switch atom.Predicate {
	case "node":
		return dispatchNode(store, atom)
	case "edge":
		return dispatchEdge(store, atom)
	case "incoming":
		return dispatchIncoming(store, atom)
	case "attr":
		return dispatchAttr(store, atom)
	case "attr_edge":
		return dispatchAttrEdge(store, atom)
	case "path":
		return dispatchPath(store, atom)
	case "neq":
		return dispatchNeq(atom)
	case "starts_with":
		return dispatchStartsWith(atom, false)
	case "not_starts_with":
		return dispatchStartsWith(atom, true)
	default:
		return nil, nil
	}
}

func arg(atom Atom, i int) (Term, bool) {
	if i >= len(atom.Args) {
		return Term{}, false
	}
	return atom.Args[i], true
}

// bindVar produces the single-key binding naming term t, or an empty
// Binding if t is a wildcard/const (nothing to bind).
func bindVar(t Term, value string) Binding {
	if t.Kind != TermVar {
		return Binding{}
	}
	return Binding{t.Name: value}
}

func dispatchNode(store *graph.Store, atom Atom) ([]Binding, error) {
	idArg, _ := arg(atom, 0)
	kindArg, _ := arg(atom, 1)

	var nodes []graphmodel.Node
	switch {
	case idArg.IsBound():
		if n, ok := store.GetNode(idArg.Value); ok {
			nodes = []graphmodel.Node{n}
		}
	case kindArg.IsBound():
		nodes = store.FindByType(kindArg.Value)
	default:
		nodes = store.AllNodes()
	}

	out := make([]Binding, 0, len(nodes))
	for _, n := range nodes {
		if kindArg.IsBound() && n.Kind != kindArg.Value {
			continue
		}
		b := bindVar(idArg, n.ID)
		merge(b, bindVar(kindArg, n.Kind))
		out = append(out, b)
	}
	return out, nil
}

func dispatchEdge(store *graph.Store, atom Atom) ([]Binding, error) {
	return dispatchEdgeLike(store, atom, false)
}

func dispatchIncoming(store *graph.Store, atom Atom) ([]Binding, error) {
	return dispatchEdgeLike(store, atom, true)
}

// dispatchEdgeLike implements both edge(?Src,?Dst,?Kind) and
// incoming(?Dst,?Src,?Kind) — incoming is edge with its first two arguments
// swapped in meaning (spec.md §4.2.1 "reverse index").
func dispatchEdgeLike(store *graph.Store, atom Atom, reversed bool) ([]Binding, error) {
	firstArg, _ := arg(atom, 0)
	secondArg, _ := arg(atom, 1)
	kindArg, _ := arg(atom, 2)

	// Normalize to (src, dst) regardless of which predicate we're serving.
	srcArg, dstArg := firstArg, secondArg
	if reversed {
		srcArg, dstArg = secondArg, firstArg
	}

	var kinds []string
	if kindArg.IsBound() {
		kinds = []string{kindArg.Value}
	}

	var edges []graphmodel.Edge
	switch {
	case srcArg.IsBound():
		edges = store.GetOutgoingEdges(srcArg.Value, kinds...)
	case dstArg.IsBound():
		edges = store.GetIncomingEdges(dstArg.Value, kinds...)
	default:
		edges = store.AllEdges()
	}

	out := make([]Binding, 0, len(edges))
	for _, e := range edges {
		if srcArg.IsBound() && e.Src != srcArg.Value {
			continue
		}
		if dstArg.IsBound() && e.Dst != dstArg.Value {
			continue
		}
		if kindArg.IsBound() && e.Kind != kindArg.Value {
			continue
		}
		b := Binding{}
		if reversed {
			merge(b, bindVar(firstArg, e.Dst))
			merge(b, bindVar(secondArg, e.Src))
		} else {
			merge(b, bindVar(firstArg, e.Src))
			merge(b, bindVar(secondArg, e.Dst))
		}
		merge(b, bindVar(kindArg, e.Kind))
		out = append(out, b)
	}
	return out, nil
}

func merge(dst, src Binding) {
	for k, v := range src {
		dst[k] = v
	}
}

// dispatchAttr implements attr(?Id, AttrName, ?Value). AttrName must be a
// constant per spec.md §4.2.1 ("AttrName" has no '?' — it names the key to
// look up, it does not bind).
func dispatchAttr(store *graph.Store, atom Atom) ([]Binding, error) {
	idArg, _ := arg(atom, 0)
	nameArg, _ := arg(atom, 1)
	valArg, _ := arg(atom, 2)

	if !nameArg.IsBound() {
		return nil, nil
	}

	var nodes []graphmodel.Node
	if idArg.IsBound() {
		if n, ok := store.GetNode(idArg.Value); ok {
			nodes = []graphmodel.Node{n}
		}
	} else {
		nodes = store.AllNodes()
	}

	out := make([]Binding, 0, len(nodes))
	for _, n := range nodes {
		v, ok := n.Attributes[nameArg.Value]
		if !ok {
			continue
		}
		b := bindVar(idArg, n.ID)
		merge(b, bindVar(valArg, valueToString(v)))
		out = append(out, b)
	}
	return out, nil
}

// dispatchAttrEdge implements
// attr_edge(?Src, ?Dst, EdgeKind, AttrName, ?Value): EdgeKind and AttrName
// are constants naming the lookup, Src/Dst/Value bind.
func dispatchAttrEdge(store *graph.Store, atom Atom) ([]Binding, error) {
	srcArg, _ := arg(atom, 0)
	dstArg, _ := arg(atom, 1)
	kindArg, _ := arg(atom, 2)
	nameArg, _ := arg(atom, 3)
	valArg, _ := arg(atom, 4)

	if !kindArg.IsBound() || !nameArg.IsBound() {
		return nil, nil
	}

	var edges []graphmodel.Edge
	switch {
	case srcArg.IsBound():
		edges = store.GetOutgoingEdges(srcArg.Value, kindArg.Value)
	case dstArg.IsBound():
		edges = store.GetIncomingEdges(dstArg.Value, kindArg.Value)
	default:
		edges = store.AllEdges()
	}

	out := make([]Binding, 0, len(edges))
	for _, e := range edges {
		if e.Kind != kindArg.Value {
			continue
		}
		if srcArg.IsBound() && e.Src != srcArg.Value {
			continue
		}
		if dstArg.IsBound() && e.Dst != dstArg.Value {
			continue
		}
		v, ok := e.Attributes[nameArg.Value]
		if !ok {
			continue
		}
		b := bindVar(srcArg, e.Src)
		merge(b, bindVar(dstArg, e.Dst))
		merge(b, bindVar(valArg, valueToString(v)))
		out = append(out, b)
	}
	return out, nil
}

// dispatchPath implements path(?Src, ?Dst): transitive reachability over
// every edge kind via BFS, per spec.md §4.2.1.
func dispatchPath(store *graph.Store, atom Atom) ([]Binding, error) {
	srcArg, _ := arg(atom, 0)
	dstArg, _ := arg(atom, 1)

	var sources []string
	if srcArg.IsBound() {
		sources = []string{srcArg.Value}
	} else {
		for _, n := range store.AllNodes() {
			sources = append(sources, n.ID)
		}
	}

	var out []Binding
	for _, src := range sources {
		reachable := bfsReachable(store, src)
		for dst := range reachable {
			if dstArg.IsBound() && dst != dstArg.Value {
				continue
			}
			b := bindVar(srcArg, src)
			merge(b, bindVar(dstArg, dst))
			out = append(out, b)
		}
	}
	return out, nil
}

func bfsReachable(store *graph.Store, src string) map[string]struct{} {
	visited := make(map[string]struct{})
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range store.GetOutgoingEdges(cur) {
			if _, ok := visited[e.Dst]; ok {
				continue
			}
			visited[e.Dst] = struct{}{}
			queue = append(queue, e.Dst)
		}
	}
	return visited
}

// Guard predicates (neq, starts_with, not_starts_with) never introduce new
// bindings; they filter the carrier. An unbound argument at guard-evaluation
// time means the literal was ordered before the bindings it depends on —
// the guard simply fails, admitting no binding.

func dispatchNeq(atom Atom) ([]Binding, error) {
	x, _ := arg(atom, 0)
	y, _ := arg(atom, 1)
	if !x.IsBound() || !y.IsBound() {
		return nil, nil
	}
	if x.Value == y.Value {
		return nil, nil
	}
	return []Binding{{}}, nil
}

func dispatchStartsWith(atom Atom, negate bool) ([]Binding, error) {
	s, _ := arg(atom, 0)
	prefix, _ := arg(atom, 1)
	if !s.IsBound() || !prefix.IsBound() {
		return nil, nil
	}
	has := strings.HasPrefix(s.Value, prefix.Value)
	if has == negate {
		return nil, nil
	}
	return []Binding{{}}, nil
}
