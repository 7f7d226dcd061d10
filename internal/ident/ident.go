// Package ident allocates stable opaque identifiers for tracked entities and
// maps their case-normalized natural keys (file paths, qualified names,
// project names) back to those identifiers.
package ident

import (
	"errors"
	"fmt"
	"strings"
)

// ID is an opaque handle for one entity of a given kind. IDs are unique per
// Registry and never reused within a run.
type ID uint32

// Invalid is the reserved zero ID. Allocation always starts above it.
const Invalid ID = 0

// ErrDuplicateKey is returned when a key that must be unique is registered twice.
var ErrDuplicateKey = errors.New("duplicate key")

// Valid reports whether id is not the Invalid sentinel.
func (id ID) Valid() bool { return id != Invalid }

// Registry hands out monotonically increasing IDs for one entity kind and
// remembers the key each ID was registered under. It is not safe for
// concurrent use; each run owns its registries.
type Registry struct {
	kind string
	next ID
	ids  map[string]ID
	keys []string // keys[id-1] is the key for id, or "" for anonymous allocations
}

// NewRegistry creates an empty registry. kind is used in error messages.
func NewRegistry(kind string) *Registry {
	return &Registry{
		kind: kind,
		next: Invalid + 1,
		ids:  make(map[string]ID),
	}
}

// Normalize returns the canonical form of a natural key.
func Normalize(key string) string {
	return strings.ToUpper(key)
}

// Allocate returns a fresh ID that is not associated with any key.
func (r *Registry) Allocate() ID {
	id := r.next
	r.next++
	r.keys = append(r.keys, "")
	return id
}

// Register returns the ID for key, allocating one if the key is new. The
// second result is true when a new ID was allocated.
func (r *Registry) Register(key string) (ID, bool) {
	norm := Normalize(key)
	if id, ok := r.ids[norm]; ok {
		return id, false
	}
	id := r.Allocate()
	r.ids[norm] = id
	r.keys[id-1] = norm
	return id, true
}

// MustRegisterNew registers key and fails with ErrDuplicateKey if it is
// already known.
func (r *Registry) MustRegisterNew(key string) (ID, error) {
	id, created := r.Register(key)
	if !created {
		return Invalid, fmt.Errorf("%w: %s %q", ErrDuplicateKey, r.kind, key)
	}
	return id, nil
}

// Lookup returns the ID registered for key.
func (r *Registry) Lookup(key string) (ID, bool) {
	id, ok := r.ids[Normalize(key)]
	return id, ok
}

// Key returns the normalized key registered for id, or "" if id is unknown
// or was allocated anonymously.
func (r *Registry) Key(id ID) string {
	if id == Invalid || int(id) > len(r.keys) {
		return ""
	}
	return r.keys[id-1]
}

// Len returns the number of IDs allocated so far.
func (r *Registry) Len() int {
	return len(r.keys)
}

// IDs returns every allocated ID in allocation order.
func (r *Registry) IDs() []ID {
	out := make([]ID, 0, len(r.keys))
	for i := range r.keys {
		out = append(out, ID(i+1))
	}
	return out
}
