/*
Package dsl provides a Go DSL for programmatically constructing arbor trees.

Trees can be written directly with the domain grammar (domain.Sequence,
domain.Paths, domain.Func) or with the fluent Builder, which keeps the branch
map attached to the step that selects it.

Example usage:

	tree, err := dsl.New("checkout").
		Step("validate", validate).
		Branch("success", dsl.Fn("charge", charge), dsl.Fn("receipt", receipt)).
		Branch("error", dsl.Fn("notify", notify)).
		Step("cleanup", cleanup).
		Build()

Function indices are assigned when the tree is built, depth-first and pre-order,
visiting branches in sorted name order.
*/
package dsl
