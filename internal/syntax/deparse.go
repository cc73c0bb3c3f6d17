package syntax

import "strings"

// Standardize parses src and deparses it back with canonical whitespace,
// double-quoted string literals, and no trailing semicolon or trivia — the
// exact text hashed by the content hasher's command-hash rule (spec §4.D).
func Standardize(src string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(src), "; \t\n")
	expr, err := Parse(trimmed)
	if err != nil {
		return "", err
	}
	return Deparse(expr), nil
}

// Deparse renders expr back to canonical source text.
func Deparse(expr Expr) string {
	return expr.String()
}

// Children returns the direct child expressions of n, used by generic
// (unclassified) call descent and by the free-variable pass. Call heads
// are not children since CallExpr.Name is a bare string, not a node.
func Children(n Expr) []Expr {
	switch v := n.(type) {
	case *ListExpr:
		return v.Elems
	case *CallExpr:
		children := make([]Expr, 0, len(v.Args)+len(v.Kwargs))
		children = append(children, v.Args...)
		for _, kw := range v.Kwargs {
			children = append(children, kw.Value)
		}
		return children
	case *BinaryExpr:
		return []Expr{v.X, v.Y}
	case *UnaryExpr:
		return []Expr{v.X}
	default:
		return nil
	}
}
