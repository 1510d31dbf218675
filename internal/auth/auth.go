// Package auth implements the named credential store referenced by opaque
// keys embedded in operator specs. Grounded on the original's
// setup/auth_registry.rs: a single RWMutex-guarded map, duplicate names
// rejected as client errors, and content-addressed transient entries
// keyed by a fixed fingerprint salt.
package auth

import (
	"fmt"
	"sync"

	"github.com/indexflow/indexflow/internal/errs"
	"github.com/indexflow/indexflow/internal/fingerprint"
)

// transientSalt distinguishes auth-registry fingerprints from every other
// domain that calls into internal/fingerprint.
const transientSalt = "cocoindex_auth"

// Registry is a process-wide named-credential store. The zero value is
// not usable; use New.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]any
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]any)}
}

// Add registers a named entry. Re-registering an existing key is a client
// error: auth entries are meant to be declared once at startup.
func (r *Registry) Add(key string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return errs.Client("auth entry %q already registered", key)
	}
	r.entries[key] = value
	return nil
}

// AddTransient registers value under a content-addressed key derived from
// its fingerprint, so that two callers supplying byte-identical transient
// payloads (e.g. the same inline API credentials) share one entry. Returns
// the generated key.
func (r *Registry) AddTransient(value any) (string, error) {
	digest, err := fingerprint.Of(transientSalt, value)
	if err != nil {
		return "", fmt.Errorf("fingerprint transient auth entry: %w", err)
	}
	key := "__transient_" + digest.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; !exists {
		r.entries[key] = value
	}
	return key, nil
}

// Resolve looks up key without a static payload type, satisfying
// internal/ops.AuthResolver so the builder can pass a *Registry directly
// into ops.AnalyzeContext.
func (r *Registry) Resolve(key string) (any, error) {
	r.mu.RLock()
	raw, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.Client(
			"no auth entry registered under key %q; see the auth registry documentation for how to add one", key)
	}
	return raw, nil
}

// Get resolves key, type-asserting the stored payload to T. A missing key
// is a client error whose message points at documentation, matching the
// original registry's not-found hint.
func Get[T any](r *Registry, key string) (T, error) {
	var zero T
	r.mu.RLock()
	raw, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return zero, errs.Client(
			"no auth entry registered under key %q; see the auth registry documentation for how to add one", key)
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, errs.Internal(fmt.Errorf("auth entry %q has unexpected payload type %T", key, raw))
	}
	return typed, nil
}
