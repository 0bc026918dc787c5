// Package middleware wraps a trace store to change what is persisted, such as
// masking sensitive payload keys or encrypting event data at rest.
package middleware

import "github.com/aretw0/arbor/pkg/ports"

// Middleware allows wrapping a TraceStore to add behavior.
type Middleware func(ports.TraceStore) ports.TraceStore

// Chain applies middlewares so that the first one sees each event first.
func Chain(store ports.TraceStore, mws ...Middleware) ports.TraceStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
