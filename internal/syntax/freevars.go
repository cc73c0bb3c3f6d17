package syntax

// FreeVariables performs a generic pass over expr, returning every bare
// identifier reached anywhere in the tree (positional args, keyword
// values, list elements, operator operands). The analyzer intersects its
// classification-derived globals against this set to drop anything that
// isn't truly a free identifier of the expression (spec §4.A).
func FreeVariables(expr Expr) map[string]bool {
	seen := make(map[string]bool)
	var walk func(Expr)
	walk = func(n Expr) {
		if n == nil {
			return
		}
		if id, ok := n.(*Ident); ok {
			seen[id.Name] = true
			return
		}
		if call, ok := n.(*CallExpr); ok && call.Name != "" {
			// A call's head names a binding just as a bare identifier would;
			// the analyzer's marker/namespaced classification later decides
			// whether that name ends up in globals, loads, or namespaced.
			seen[call.Name] = true
		}
		for _, c := range Children(n) {
			walk(c)
		}
	}
	walk(expr)
	return seen
}
