// Package enumdb holds the persisted records of the enum reflection tool and
// the snapshot store that loads and saves them between runs.
package enumdb

import (
	"strings"
	"time"

	"github.com/papapumpkin/ccgtools/internal/ident"
)

// ProjectRecord describes one C++ project that owns header files.
type ProjectRecord struct {
	Name     string `toml:"name"`      // upper-cased project name
	CaseName string `toml:"case_name"` // name as spelled on disk
}

// HeaderFileRecord describes one header file seen in a project.
type HeaderFileRecord struct {
	Path         string    `toml:"path"`
	Project      string    `toml:"project"`
	LastModified time.Time `toml:"last_modified"`
}

// EnumEntry is one enumerator. CPPName is always set. EntryName is the
// registration name used for string conversion and is empty when the entry
// is not registered. An entry either carries an explicit value (HasValue),
// references another symbol (BoundName), or is computed positionally.
type EnumEntry struct {
	CPPName   string `toml:"cpp_name"`
	EntryName string `toml:"entry_name,omitempty"`
	Value     uint64 `toml:"value"`
	HasValue  bool   `toml:"has_value,omitempty"`
	BoundName string `toml:"bound_name,omitempty"`
}

// valueEquals compares the persisted identity of two entries.
func (e EnumEntry) valueEquals(o EnumEntry) bool {
	return e.CPPName == o.CPPName &&
		e.EntryName == o.EntryName &&
		e.Value == o.Value &&
		e.BoundName == o.BoundName
}

// EnumRecord is one tagged enum definition.
type EnumRecord struct {
	Name        string      `toml:"name"`
	Namespace   string      `toml:"namespace,omitempty"`
	HeaderPath  string      `toml:"header_path"`
	Bitfield    bool        `toml:"bitfield,omitempty"`
	ExtendsEnum string      `toml:"extends,omitempty"`
	Entries     []EnumEntry `toml:"entries"`

	// HeaderID is the owning header's ID in the current run.
	HeaderID ident.ID `toml:"-"`
	// Base is the linked base record of an extension enum.
	Base *EnumRecord `toml:"-"`
	// StartingValue is the value inherited from the base enum.
	StartingValue uint64 `toml:"-"`
	// ExtensionInitialized is set once every entry value has been bound.
	ExtensionInitialized bool `toml:"-"`
}

// FullName returns the qualified name, Namespace::Name.
func (r *EnumRecord) FullName() string {
	if r.Namespace == "" {
		return r.Name
	}
	return r.Namespace + "::" + r.Name
}

// IsExtension reports whether the enum extends a base enum.
func (r *EnumRecord) IsExtension() bool {
	return r.ExtendsEnum != ""
}

// AddEntry appends an entry, upper-casing its registration name. Duplicate
// non-empty registration names fail with ErrDuplicateEntryName.
func (r *EnumRecord) AddEntry(e EnumEntry) error {
	e.EntryName = strings.ToUpper(e.EntryName)
	if e.EntryName != "" {
		for _, existing := range r.Entries {
			if existing.EntryName == e.EntryName {
				return enumErr(r.FullName(), "%w: %s", ErrDuplicateEntryName, e.EntryName)
			}
		}
	}
	r.Entries = append(r.Entries, e)
	return nil
}

// EntryByCPPName returns the entry declared with the given C++ symbol name.
func (r *EnumRecord) EntryByCPPName(name string) (EnumEntry, bool) {
	for _, e := range r.Entries {
		if e.CPPName == name {
			return e, true
		}
	}
	return EnumEntry{}, false
}

// RegisteredEntries returns the entries that carry a registration name.
func (r *EnumRecord) RegisteredEntries() []EnumEntry {
	var out []EnumEntry
	for _, e := range r.Entries {
		if e.EntryName != "" {
			out = append(out, e)
		}
	}
	return out
}

// ValueEquals reports whether two records describe the same enum: equal
// names, flags, owning header, namespace, base reference and entries in
// declaration order.
func (r *EnumRecord) ValueEquals(o *EnumRecord) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Name != o.Name ||
		r.Namespace != o.Namespace ||
		r.Bitfield != o.Bitfield ||
		r.ExtendsEnum != o.ExtendsEnum ||
		r.HeaderID != o.HeaderID ||
		!strings.EqualFold(r.HeaderPath, o.HeaderPath) ||
		len(r.Entries) != len(o.Entries) {
		return false
	}
	for i := range r.Entries {
		if !r.Entries[i].valueEquals(o.Entries[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy with the run-time linkage cleared.
func (r *EnumRecord) Clone() *EnumRecord {
	c := *r
	c.Entries = append([]EnumEntry(nil), r.Entries...)
	c.Base = nil
	c.StartingValue = 0
	c.ExtensionInitialized = false
	return &c
}
