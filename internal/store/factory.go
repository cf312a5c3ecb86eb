// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

package store

import (
	"sync"

	vfaceerr "github.com/vface-dev/vface/pkg/errors"
)

// Config selects and parameterizes a store backend.
type Config struct {
	// Backend names a registered backend ("sqlite" or "vecgo").
	Backend string

	// Path is the backend data location (database file for sqlite; unused
	// by the in-memory vecgo backend).
	Path string

	// Collection is the logical collection name.
	Collection string

	// VectorDim is the embedding dimension the collection is created for.
	VectorDim int
}

// Factory creates an IdentityStore for a backend.
type Factory func(cfg Config) (IdentityStore, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named backend. Backend packages
// call this from init(). Goroutine-safe.
func RegisterBackend(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// New creates an IdentityStore for the configured backend, defaulting to
// "sqlite".
func New(cfg Config) (IdentityStore, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "sqlite"
	}

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, vfaceerr.Errorf(vfaceerr.CodeStoreBackendUnsupported,
			"unsupported store backend: %q", backend)
	}

	return factory(cfg)
}
