package tracker

import (
	"fmt"

	"github.com/papapumpkin/ccgtools/internal/dag"
	"github.com/papapumpkin/ccgtools/internal/enumdb"
	"github.com/papapumpkin/ccgtools/internal/ident"
)

// Enum is a tracked enum definition keyed by its qualified name.
type Enum = Entity[*enumdb.EnumRecord]

// Enums tracks every tagged enum by upper-cased qualified name.
type Enums struct {
	reg   *ident.Registry
	byID  map[ident.ID]*Enum
	graph *dag.DAG
}

// NewEnums creates an empty tracker.
func NewEnums() *Enums {
	return &Enums{
		reg:  ident.NewRegistry("enum"),
		byID: make(map[ident.ID]*Enum),
	}
}

// LoadPersisted registers the snapshot's enums as deleted until observed.
func (t *Enums) LoadPersisted(records []*enumdb.EnumRecord) error {
	for _, rec := range records {
		id, err := t.reg.MustRegisterNew(rec.FullName())
		if err != nil {
			return fmt.Errorf("loading persisted enums: %w", err)
		}
		t.byID[id] = Persisted(id, rec)
	}
	return nil
}

// InitializeStartingStates ties each persisted enum to its header and
// derives a starting state from it. Enums in unchanged headers start
// unchanged; enums in dirty or deleted headers wait on reparsing.
func (t *Enums) InitializeStartingStates(headers *Headers) error {
	for _, e := range t.All() {
		old, ok := e.Old()
		if !ok {
			continue
		}
		h := headers.ByPath(old.HeaderPath)
		if h == nil {
			return fmt.Errorf("enum %s: header %s is not tracked", old.FullName(), old.HeaderPath)
		}
		old.HeaderID = h.ID
		switch {
		case h.CreationState() == CreationDeleted:
			e.State = StateUnknown
		case h.State == StateUnchanged:
			e.State = StateUnchanged
		case h.State == StateDirty:
			e.State = StateUnknown
		default:
			return fmt.Errorf("enum %s: header %s has unexpected state %s", old.FullName(), h.Path(), h.State)
		}
	}
	return nil
}

// RegisterParsed merges a freshly parsed record by qualified name. The
// record's HeaderID must already be set. Defining the same enum twice in
// one run is an error.
func (t *Enums) RegisterParsed(rec *enumdb.EnumRecord) (*Enum, error) {
	id, created := t.reg.Register(rec.FullName())
	if created {
		e := Discovered(id, rec)
		t.byID[id] = e
		return e, nil
	}
	e := t.byID[id]
	if err := e.observe(rec); err != nil {
		return nil, fmt.Errorf("enum %s defined twice: %w", rec.FullName(), err)
	}
	old, _ := e.Old()
	if old.ValueEquals(rec) {
		e.State = StateUnchanged
	} else {
		e.State = StateDirty
	}
	return e, nil
}

// ProcessFinalStates promotes enums of unchanged headers, binds every
// value, settles each enum's state and marks the owning projects of
// changed enums dirty.
func (t *Enums) ProcessFinalStates(headers *Headers, projects *Projects) error {
	for _, e := range t.All() {
		if e.CreationState() != CreationDeleted {
			continue
		}
		old, _ := e.Old()
		h := headers.ByID(old.HeaderID)
		if h == nil || h.CreationState() == CreationDeleted || h.State != StateUnchanged {
			continue
		}
		if err := e.promote((*enumdb.EnumRecord).Clone); err != nil {
			return fmt.Errorf("enum %s: %w", old.FullName(), err)
		}
	}

	if err := t.Resolve(); err != nil {
		return err
	}

	for _, e := range t.All() {
		old, hasOld := e.Old()
		cur, hasNew := e.New()
		switch e.CreationState() {
		case CreationUnchanged:
			if old.ValueEquals(cur) {
				e.State = StateUnchanged
				continue
			}
			e.State = StateDirty
		case CreationNew:
			e.State = StateDirty
		case CreationDeleted:
			e.State = StateInvalid
		}
		if hasOld {
			if err := markOwner(headers, projects, old.HeaderID); err != nil {
				return fmt.Errorf("enum %s: %w", old.FullName(), err)
			}
		}
		if hasNew {
			if err := markOwner(headers, projects, cur.HeaderID); err != nil {
				return fmt.Errorf("enum %s: %w", cur.FullName(), err)
			}
		}
	}
	return nil
}

func markOwner(headers *Headers, projects *Projects, headerID ident.ID) error {
	h := headers.ByID(headerID)
	if h == nil {
		return fmt.Errorf("unknown header id %d", headerID)
	}
	return projects.MarkDirty(h.ProjectID, h.Path())
}

// ByName returns the enum registered under a qualified name.
func (t *Enums) ByName(name string) *Enum {
	id, ok := t.reg.Lookup(name)
	if !ok {
		return nil
	}
	return t.byID[id]
}

// All returns every enum in ID order.
func (t *Enums) All() []*Enum {
	out := make([]*Enum, 0, len(t.byID))
	for _, id := range t.reg.IDs() {
		out = append(out, t.byID[id])
	}
	return out
}

// ProjectEnums returns the present records whose header belongs to the
// project, in ID order.
func (t *Enums) ProjectEnums(headers *Headers, projectID ident.ID) []*enumdb.EnumRecord {
	var out []*enumdb.EnumRecord
	for _, e := range t.All() {
		cur, ok := e.New()
		if !ok {
			continue
		}
		if h := headers.ByID(cur.HeaderID); h != nil && h.ProjectID == projectID {
			out = append(out, cur)
		}
	}
	return out
}

// ReferencedEnums returns the given records plus every base enum they
// extend transitively, each once, in ID order. It is only meaningful after
// Resolve.
func (t *Enums) ReferencedEnums(records []*enumdb.EnumRecord) []*enumdb.EnumRecord {
	want := make(map[string]bool)
	for _, rec := range records {
		key := ident.Normalize(rec.FullName())
		want[key] = true
		if t.graph != nil {
			for _, anc := range t.graph.Ancestors(key) {
				want[anc] = true
			}
		}
	}
	var out []*enumdb.EnumRecord
	for _, e := range t.All() {
		cur, ok := e.New()
		if ok && want[ident.Normalize(cur.FullName())] {
			out = append(out, cur)
		}
	}
	return out
}

// SaveRecords returns the records of every enum present this run.
func (t *Enums) SaveRecords() []*enumdb.EnumRecord {
	var out []*enumdb.EnumRecord
	for _, e := range t.All() {
		if rec, ok := e.New(); ok {
			out = append(out, rec)
		}
	}
	return out
}
