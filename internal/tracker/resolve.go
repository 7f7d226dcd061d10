package tracker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/papapumpkin/ccgtools/internal/dag"
	"github.com/papapumpkin/ccgtools/internal/enumdb"
	"github.com/papapumpkin/ccgtools/internal/ident"
)

// Link errors.
var (
	ErrUnknownBase         = errors.New("extends an enum that does not exist")
	ErrRemovedBase         = errors.New("extends an enum that was removed")
	ErrSelfExtension       = errors.New("cannot extend itself")
	ErrBitfieldMismatch    = errors.New("bitfield setting differs from its base enum")
	ErrUnresolvedExtension = errors.New("extension enums could not be resolved")
)

// ResolveError lists the enums left unbound, typically because their
// extension chain forms a cycle.
type ResolveError struct {
	Enums []string
	Err   error
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, strings.Join(e.Enums, ", "))
}

// Unwrap returns the underlying error so callers can use errors.Is.
func (e *ResolveError) Unwrap() error { return e.Err }

// Resolve links every present extension enum to its base and binds all
// entry values so that a base is always bound before the enums extending it.
func (t *Enums) Resolve() error {
	g := dag.New()
	present := make(map[string]*enumdb.EnumRecord)
	for _, e := range t.All() {
		rec, ok := e.New()
		if !ok {
			continue
		}
		rec.Base = nil
		rec.StartingValue = 0
		rec.ExtensionInitialized = false
		key := ident.Normalize(rec.FullName())
		present[key] = rec
		if err := g.AddNode(key); err != nil {
			return fmt.Errorf("enum %s: %w", rec.FullName(), err)
		}
	}

	for _, key := range g.Nodes() {
		rec := present[key]
		if !rec.IsExtension() {
			continue
		}
		base, err := t.link(rec)
		if err != nil {
			return err
		}
		if err := g.AddEdge(key, ident.Normalize(base.FullName())); err != nil {
			return fmt.Errorf("enum %s: %w", rec.FullName(), err)
		}
	}

	pending, err := g.Resolve(func(key string) error {
		rec := present[key]
		if rec.Base == nil {
			return rec.BindValues()
		}
		if err := rec.StartFromBase(rec.Base); err != nil {
			return err
		}
		return rec.BindExtensionValues()
	})
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		names := make([]string, len(pending))
		for i, key := range pending {
			names[i] = present[key].FullName()
		}
		return &ResolveError{Enums: names, Err: ErrUnresolvedExtension}
	}
	t.graph = g
	return nil
}

func (t *Enums) link(rec *enumdb.EnumRecord) (*enumdb.EnumRecord, error) {
	wrap := func(err error) error {
		return &enumdb.EnumError{Enum: rec.FullName(), Err: fmt.Errorf("%w: %s", err, rec.ExtendsEnum)}
	}
	e := t.ByName(rec.ExtendsEnum)
	if e == nil {
		return nil, wrap(ErrUnknownBase)
	}
	base, ok := e.New()
	if !ok {
		return nil, wrap(ErrRemovedBase)
	}
	if base == rec {
		return nil, wrap(ErrSelfExtension)
	}
	if base.Bitfield != rec.Bitfield {
		return nil, wrap(ErrBitfieldMismatch)
	}
	rec.Base = base
	return base, nil
}
