package enumdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// SnapshotVersion is the current on-disk format version.
const SnapshotVersion = 1

// Snapshot is the persisted database: three ordered record lists.
type Snapshot struct {
	Version     int                `toml:"version"`
	Projects    []ProjectRecord    `toml:"projects"`
	HeaderFiles []HeaderFileRecord `toml:"header_files"`
	Enums       []*EnumRecord      `toml:"enums"`
}

// Empty returns a first-run snapshot.
func Empty() *Snapshot {
	return &Snapshot{Version: SnapshotVersion}
}

// TOMLStore loads and saves a Snapshot as a TOML file.
type TOMLStore struct {
	Path string
}

// Load reads the snapshot. A missing file yields an empty snapshot.
func (s TOMLStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("reading enum database: %w", err)
	}

	var snap Snapshot
	if err := toml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing enum database %s: %w", s.Path, err)
	}
	if snap.Version > SnapshotVersion {
		return nil, fmt.Errorf("enum database %s has unsupported version %d", s.Path, snap.Version)
	}
	for _, e := range snap.Enums {
		if e == nil {
			return nil, fmt.Errorf("enum database %s contains an empty enum record", s.Path)
		}
	}
	return &snap, nil
}

// Save writes the snapshot atomically (write temp + rename).
func (s TOMLStore) Save(snap *Snapshot) error {
	snap.Version = SnapshotVersion
	data, err := toml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling enum database: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("creating enum database directory: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp enum database: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming enum database: %w", err)
	}
	return nil
}

// Remove deletes the snapshot file. A missing file is not an error.
func (s TOMLStore) Remove() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing enum database: %w", err)
	}
	return nil
}
