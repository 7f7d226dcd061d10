package tracker

import (
	"fmt"

	"github.com/papapumpkin/ccgtools/internal/enumdb"
	"github.com/papapumpkin/ccgtools/internal/ident"
)

// Project is a tracked C++ project.
type Project struct {
	*Entity[*enumdb.ProjectRecord]

	// DirtyHeaders lists the header paths that caused the project to be
	// marked dirty.
	DirtyHeaders []string
}

// Name returns the upper-cased project name.
func (p *Project) Name() string { return p.Record().Name }

// CaseName returns the project name as spelled on disk.
func (p *Project) CaseName() string {
	if rec, ok := p.New(); ok {
		return rec.CaseName
	}
	return p.Record().CaseName
}

// NeedsRegeneration reports whether the project's registration files must be
// written this run.
func (p *Project) NeedsRegeneration() bool {
	_, present := p.New()
	return present && (p.CreationState() == CreationNew || p.State == StateDirty)
}

// Projects tracks every project by upper-cased name.
type Projects struct {
	reg     *ident.Registry
	byID    map[ident.ID]*Project
	skipped map[string]bool
}

// NewProjects creates an empty tracker. Projects named in skipped are never
// registered from disk.
func NewProjects(skipped []string) *Projects {
	s := make(map[string]bool, len(skipped))
	for _, name := range skipped {
		s[ident.Normalize(name)] = true
	}
	return &Projects{
		reg:     ident.NewRegistry("project"),
		byID:    make(map[ident.ID]*Project),
		skipped: s,
	}
}

// LoadPersisted registers the snapshot's projects as deleted until observed.
func (t *Projects) LoadPersisted(records []enumdb.ProjectRecord) error {
	for i := range records {
		rec := records[i]
		id, err := t.reg.MustRegisterNew(rec.Name)
		if err != nil {
			return fmt.Errorf("loading persisted projects: %w", err)
		}
		t.byID[id] = &Project{Entity: Persisted(id, &rec)}
	}
	return nil
}

// Skipped reports whether a project name is excluded from tracking.
func (t *Projects) Skipped(name string) bool {
	return t.skipped[ident.Normalize(name)]
}

// Register records a project found on disk. It returns nil for skipped
// projects. A project name seen twice in one run is an error.
func (t *Projects) Register(caseName string) (*Project, error) {
	if t.Skipped(caseName) {
		return nil, nil
	}
	rec := &enumdb.ProjectRecord{Name: ident.Normalize(caseName), CaseName: caseName}
	id, created := t.reg.Register(caseName)
	if created {
		p := &Project{Entity: Discovered(id, rec)}
		t.byID[id] = p
		return p, nil
	}
	p := t.byID[id]
	if err := p.observe(rec); err != nil {
		return nil, fmt.Errorf("project %s: %w", caseName, ident.ErrDuplicateKey)
	}
	p.State = StateUnchanged
	return p, nil
}

// ByName returns the project registered under name.
func (t *Projects) ByName(name string) *Project {
	id, ok := t.reg.Lookup(name)
	if !ok {
		return nil
	}
	return t.byID[id]
}

// ByID returns the project with the given ID.
func (t *Projects) ByID(id ident.ID) *Project {
	return t.byID[id]
}

// All returns every project in ID order.
func (t *Projects) All() []*Project {
	out := make([]*Project, 0, len(t.byID))
	for _, id := range t.reg.IDs() {
		out = append(out, t.byID[id])
	}
	return out
}

// MarkDirty flags the project as needing regeneration because of header.
func (t *Projects) MarkDirty(id ident.ID, header string) error {
	p := t.byID[id]
	if p == nil {
		return fmt.Errorf("marking project dirty: unknown project id %d", id)
	}
	p.State = StateDirty
	p.DirtyHeaders = append(p.DirtyHeaders, header)
	return nil
}

// SaveRecords returns the records of every project present this run.
func (t *Projects) SaveRecords() []enumdb.ProjectRecord {
	var out []enumdb.ProjectRecord
	for _, p := range t.All() {
		if rec, ok := p.New(); ok {
			out = append(out, *rec)
		}
	}
	return out
}
