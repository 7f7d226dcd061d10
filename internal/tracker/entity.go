// Package tracker classifies projects, header files and enums as new,
// deleted, unchanged or dirty relative to the persisted snapshot, and binds
// the values of extension enums to their base enums.
//
// Each tracker is explicitly constructed and owned by a Context; trackers
// reach one another only through the Context passed to them.
package tracker

import (
	"errors"
	"fmt"

	"github.com/papapumpkin/ccgtools/internal/ident"
)

// CreationState says whether an entity exists in the snapshot, in this
// run, or both.
type CreationState int

const (
	CreationNew       CreationState = iota + 1 // only observed this run
	CreationDeleted                            // only in the snapshot (so far)
	CreationUnchanged                          // in both
)

// String returns the lowercase state name.
func (c CreationState) String() string {
	switch c {
	case CreationNew:
		return "new"
	case CreationDeleted:
		return "deleted"
	case CreationUnchanged:
		return "unchanged"
	}
	return fmt.Sprintf("CreationState(%d)", int(c))
}

// State is the outcome of comparing an entity's old and new records.
type State int

const (
	StateInvalid   State = iota // placeholder for deleted entities
	StateUnknown                // waiting on a container's state
	StateDirty                  // differs from the snapshot
	StateUnchanged              // matches the snapshot
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateInvalid:
		return "invalid"
	case StateUnknown:
		return "unknown"
	case StateDirty:
		return "dirty"
	case StateUnchanged:
		return "unchanged"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrAlreadyObserved is returned when an entity is observed twice in one run.
var ErrAlreadyObserved = errors.New("entity already observed this run")

// ErrIllegalPromotion is returned when promoting an entity that is not deleted.
var ErrIllegalPromotion = errors.New("illegal promotion to unchanged")

type variant int

const (
	variantNew      variant = iota + 1 // new record only
	variantExisting                    // old and new records
	variantRemoved                     // old record only
)

// Entity pairs the persisted (old) and observed (new) records of one
// tracked item. Exactly one of three shapes holds: new only, old and new,
// or old only.
type Entity[R any] struct {
	ID    ident.ID
	State State

	kind variant
	old  R
	cur  R
}

// Discovered returns an entity that has no persisted record.
func Discovered[R any](id ident.ID, rec R) *Entity[R] {
	return &Entity[R]{ID: id, State: StateDirty, kind: variantNew, cur: rec}
}

// Persisted returns an entity loaded from the snapshot that has not been
// observed yet.
func Persisted[R any](id ident.ID, old R) *Entity[R] {
	return &Entity[R]{ID: id, State: StateInvalid, kind: variantRemoved, old: old}
}

// Old returns the persisted record.
func (e *Entity[R]) Old() (R, bool) {
	return e.old, e.kind != variantNew
}

// New returns the record observed this run.
func (e *Entity[R]) New() (R, bool) {
	return e.cur, e.kind != variantRemoved
}

// Record returns the old record if present, else the new one.
func (e *Entity[R]) Record() R {
	if e.kind == variantNew {
		return e.cur
	}
	return e.old
}

// CreationState derives the creation state from the entity's shape.
func (e *Entity[R]) CreationState() CreationState {
	switch e.kind {
	case variantNew:
		return CreationNew
	case variantRemoved:
		return CreationDeleted
	default:
		return CreationUnchanged
	}
}

// observe attaches the record seen this run to a persisted entity.
func (e *Entity[R]) observe(rec R) error {
	if e.kind != variantRemoved {
		return ErrAlreadyObserved
	}
	e.kind = variantExisting
	e.cur = rec
	return nil
}

// promote reinstates a deleted entity by reusing its old record.
func (e *Entity[R]) promote(clone func(R) R) error {
	if e.kind != variantRemoved {
		return ErrIllegalPromotion
	}
	e.kind = variantExisting
	e.cur = clone(e.old)
	return nil
}
