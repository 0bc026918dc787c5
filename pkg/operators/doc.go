// Package operators provides ready-made steps for common routing and payload
// operations. Conditions are expr-lang expressions evaluated against the payload.
package operators
