package datalog

import "strconv"

// Binding maps variable name to a bound value. Values are always strings:
// node/edge kinds and IDs are strings, and numeric attribute values are
// rendered through valueToString (model.go's IsNumber/IsString split) so a
// single comparable representation works uniformly across guards and
// binding-compatibility checks.
type Binding map[string]string

// clone returns a shallow copy, used whenever a binding is extended so two
// branches of the search never alias the same map.
func (b Binding) clone() Binding {
	out := make(Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// substitute resolves each variable Term in atom against b, leaving
// already-bound variables as constants and leaving unbound variables (and
// wildcards) as-is. This is the per-literal substitution step of §4.2.2.
func substitute(atom Atom, b Binding) Atom {
	out := Atom{Predicate: atom.Predicate, Args: make([]Term, len(atom.Args))}
	for i, t := range atom.Args {
		if t.Kind == TermVar {
			if v, ok := b[t.Name]; ok {
				out.Args[i] = Term{Kind: TermConst, Value: v}
				continue
			}
		}
		out.Args[i] = t
	}
	return out
}

// unifyResult merges a carrier binding with a binding produced by evaluating
// one literal. Returns ok=false if the two disagree on a shared variable.
func unifyResult(carrier, result Binding) (Binding, bool) {
	merged := carrier.clone()
	for k, v := range result {
		if existing, ok := merged[k]; ok {
			if existing != v {
				return nil, false
			}
			continue
		}
		merged[k] = v
	}
	return merged, true
}

func valueToString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	default:
		return ""
	}
}
