// Package didyoumean computes "did you mean" suggestions for a typo'd kind
// string against a set of known kinds, used by cmd/graphctl's raw-query
// path. No edit-distance library appears anywhere
// in the retrieved example pack, so the distance function itself is
// hand-written; everything around it (the query-text extraction, the
// threshold and exact-case-variant rules) follows spec.md §4.4.6.
package didyoumean

import (
	"regexp"
	"strings"
)

// DefaultThreshold is the maximum edit distance considered a plausible typo.
const DefaultThreshold = 2

// quotedKind matches the kind-constant argument of node/edge/incoming
// builtin calls: node(_, "KIND"), edge(_, _, "KIND"), incoming(_, _, "KIND").
var quotedKind = regexp.MustCompile(`\b(?:node|edge|incoming)\([^()]*"([^"()]+)"[^()]*\)`)

// Distance computes the Levenshtein edit distance between a and b.
func Distance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// Suggest returns the best candidate for word among candidates: an exact
// case-insensitive match is always preferred (spec.md's "exact-case
// variant" rule), otherwise the closest candidate within threshold edit
// distance. Returns ("", false) when nothing qualifies.
func Suggest(word string, candidates []string, threshold int) (string, bool) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	lower := strings.ToLower(word)
	for _, c := range candidates {
		if c != word && strings.ToLower(c) == lower {
			return c, true
		}
	}

	best := ""
	bestDist := threshold + 1
	for _, c := range candidates {
		if c == word {
			continue
		}
		d := Distance(word, c)
		if d <= threshold && d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, best != ""
}

// KindsInQuery extracts the quoted kind constants referenced by a Datalog
// query's node/edge/incoming literals, per spec.md §4.4.6.
func KindsInQuery(query string) []string {
	matches := quotedKind.FindAllStringSubmatch(query, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// SuggestKinds builds plain-text hints for each kind in query that is
// absent from available (typically a Store's countNodesByType/
// countEdgesByType keys merged together), one hint per unresolved kind.
func SuggestKinds(query string, available map[string]int) []string {
	var hints []string
	for _, kind := range KindsInQuery(query) {
		if _, ok := available[kind]; ok {
			continue
		}
		names := make([]string, 0, len(available))
		for k := range available {
			names = append(names, k)
		}
		if suggestion, ok := Suggest(kind, names, DefaultThreshold); ok {
			hints = append(hints, "did you mean \""+suggestion+"\" instead of \""+kind+"\"?")
		}
	}
	return hints
}

// SuggestPredicate suggests the closest name in knownPredicates (for
// example builtins plus any loaded rule heads) for a predicate name that
// matched nothing, or "" when none qualifies. No caller in this repository
// uses it yet; graphctl calls only SuggestKinds. Unlike SuggestKinds
// this works over predicate names, not kind constants.
func SuggestPredicate(word string, knownPredicates []string) string {
	suggestion, ok := Suggest(word, knownPredicates, DefaultThreshold)
	if !ok {
		return ""
	}
	return suggestion
}
