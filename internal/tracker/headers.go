package tracker

import (
	"fmt"

	"github.com/papapumpkin/ccgtools/internal/enumdb"
	"github.com/papapumpkin/ccgtools/internal/ident"
)

// HeaderFile is a tracked header file.
type HeaderFile struct {
	*Entity[*enumdb.HeaderFileRecord]

	ProjectID ident.ID
}

// Path returns the header's path.
func (h *HeaderFile) Path() string { return h.Record().Path }

// NeedsReparse reports whether the header's enums must be parsed again.
func (h *HeaderFile) NeedsReparse() bool {
	return h.CreationState() == CreationNew || h.State == StateDirty
}

// Headers tracks every header file by path.
type Headers struct {
	reg  *ident.Registry
	byID map[ident.ID]*HeaderFile
}

// NewHeaders creates an empty tracker.
func NewHeaders() *Headers {
	return &Headers{
		reg:  ident.NewRegistry("header file"),
		byID: make(map[ident.ID]*HeaderFile),
	}
}

// LoadPersisted registers the snapshot's header files as deleted until observed.
func (t *Headers) LoadPersisted(records []enumdb.HeaderFileRecord) error {
	for i := range records {
		rec := records[i]
		id, err := t.reg.MustRegisterNew(rec.Path)
		if err != nil {
			return fmt.Errorf("loading persisted header files: %w", err)
		}
		t.byID[id] = &HeaderFile{Entity: Persisted(id, &rec)}
	}
	return nil
}

// Register records a header found in a project file. An existing header is
// dirty when its modification time moved forward.
func (t *Headers) Register(projectID ident.ID, rec *enumdb.HeaderFileRecord) (*HeaderFile, error) {
	id, created := t.reg.Register(rec.Path)
	if created {
		h := &HeaderFile{Entity: Discovered(id, rec), ProjectID: projectID}
		t.byID[id] = h
		return h, nil
	}
	h := t.byID[id]
	if err := h.observe(rec); err != nil {
		return nil, fmt.Errorf("header file %s: %w", rec.Path, err)
	}
	h.ProjectID = projectID
	old, _ := h.Old()
	if rec.LastModified.After(old.LastModified) {
		h.State = StateDirty
	} else {
		h.State = StateUnchanged
	}
	return h, nil
}

// BindProjects resolves each header's owning project by name.
func (t *Headers) BindProjects(projects *Projects) error {
	for _, h := range t.All() {
		name := h.Record().Project
		if rec, ok := h.New(); ok {
			name = rec.Project
		}
		p := projects.ByName(name)
		if p == nil {
			return fmt.Errorf("header file %s belongs to unknown project %s", h.Path(), name)
		}
		h.ProjectID = p.ID
	}
	return nil
}

// ByPath returns the header registered under path.
func (t *Headers) ByPath(path string) *HeaderFile {
	id, ok := t.reg.Lookup(path)
	if !ok {
		return nil
	}
	return t.byID[id]
}

// ByID returns the header with the given ID.
func (t *Headers) ByID(id ident.ID) *HeaderFile {
	return t.byID[id]
}

// All returns every header in ID order.
func (t *Headers) All() []*HeaderFile {
	out := make([]*HeaderFile, 0, len(t.byID))
	for _, id := range t.reg.IDs() {
		out = append(out, t.byID[id])
	}
	return out
}

// DirtyHeaders returns the headers that must be reparsed.
func (t *Headers) DirtyHeaders() []*HeaderFile {
	var out []*HeaderFile
	for _, h := range t.All() {
		if h.NeedsReparse() {
			out = append(out, h)
		}
	}
	return out
}

// SaveRecords returns the records of every header present this run.
func (t *Headers) SaveRecords() []enumdb.HeaderFileRecord {
	var out []enumdb.HeaderFileRecord
	for _, h := range t.All() {
		if rec, ok := h.New(); ok {
			out = append(out, *rec)
		}
	}
	return out
}
