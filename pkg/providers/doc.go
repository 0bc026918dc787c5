// Package providers contains the built-in context providers.
//
// A provider adds capabilities to the context of every step. Providers are
// folded in registration order, so a provider can depend on anything the
// providers before it attached.
package providers
