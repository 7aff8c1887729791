package builtin

// externalCalleeDenylist names well-known external object/function names
// that must never trigger a strict-mode unresolved-reference diagnostic,
// per spec.md §4.4.4's "external callees must not trigger strict errors".
var externalCalleeDenylist = map[string]bool{
	"console": true, "Math": true, "JSON": true, "Promise": true,
	"fmt": true, "errors": true, "Println": true, "Printf": true, "Sprintf": true,
	"Error": true, "New": true,
}

func isDenylistedCallee(name string) bool {
	return externalCalleeDenylist[name]
}
