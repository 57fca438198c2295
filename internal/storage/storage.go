// Package storage provides the two key-value scopes the auth subsystem
// persists into: a durable scope that survives restarts and an
// ephemeral scope bound to the process lifetime.
package storage

import "context"

// Scope is a flat string key-value store.
type Scope interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Scopes pairs the durable and ephemeral stores consumed by providers
// and the registry.
type Scopes struct {
	Durable   Scope
	Ephemeral Scope
}
