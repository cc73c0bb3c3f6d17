// Package syntax provides the minimal expression syntax tree that stands in
// for the "expression/command language" the top-level specification treats
// as an external, pluggable collaborator. buildgrid never needs a
// general-purpose scripting language (spec.md's Non-goals rule that out
// explicitly) — it only needs (a) a parser that yields a syntax tree and
// identifier references, and (b) an evaluator that runs an expression in a
// prepared scope.
//
// A hand-rolled tree is used here instead of reusing hashicorp/hcl's
// hclsyntax, even though buildgrid already depends on hcl/v2 for the plan
// file format (see internal/planfile). hclsyntax's identifier grammar
// cannot lex the "::" and ":::" namespaced-call markers the specification's
// expression analyzer must recognize (hcl identifiers only allow
// unicode-letter/digit/underscore/hyphen). Since the command language is
// explicitly out of scope and pluggable, this small parser is the
// appropriate reference implementation rather than a workaround bent
// through hcl's grammar.
package syntax
