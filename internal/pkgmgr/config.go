// Package pkgmgr downloads third-party packages, verifies and unpacks them,
// and copies selected parts into the source tree. Each input package and
// each output artifact is a small state machine; a cooperative poll loop
// advances them while the slow work runs in background tasks.
package pkgmgr

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/papapumpkin/ccgtools/internal/fsutil"
	"github.com/papapumpkin/ccgtools/internal/hashfold"
)

// OS is a bit mask of operating systems a mirror serves.
type OS uint8

// Operating system bits.
const (
	OSInvalid OS = 0
	OSWindows OS = 1 << 0
	OSLinux   OS = 1 << 1
)

var osNames = []struct {
	bit  OS
	name string
}{
	{OSWindows, "windows"},
	{OSLinux, "linux"},
}

// CurrentOS returns the bit for the running platform. Platforms other than
// Windows are served by Linux mirrors.
func CurrentOS() OS {
	if runtime.GOOS == "windows" {
		return OSWindows
	}
	return OSLinux
}

// Includes reports whether every bit of other is set in o.
func (o OS) Includes(other OS) bool {
	return other != OSInvalid && o&other == other
}

// String returns the mask as "|"-separated names.
func (o OS) String() string {
	var parts []string
	for _, n := range osNames {
		if o&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "invalid"
	}
	return strings.Join(parts, "|")
}

// ParseOS reads a "|"-separated list of operating system names.
func ParseOS(s string) (OS, error) {
	var o OS
	for _, part := range strings.Split(s, "|") {
		part = strings.ToLower(strings.TrimSpace(part))
		found := false
		for _, n := range osNames {
			if n.name == part {
				o |= n.bit
				found = true
			}
		}
		if !found {
			return OSInvalid, fmt.Errorf("unknown operating system %q", part)
		}
	}
	return o, nil
}

// MarshalYAML writes the mask as "windows|linux".
func (o OS) MarshalYAML() (any, error) {
	return o.String(), nil
}

// UnmarshalYAML accepts either a "|"-separated string or a sequence of names.
func (o *OS) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		parsed, err := ParseOS(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*o = parsed
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		parsed, err := ParseOS(strings.Join(names, "|"))
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*o = parsed
	default:
		return fmt.Errorf("line %d: os must be a string or a list", node.Line)
	}
	return nil
}

// Mirror is one download location for a package.
type Mirror struct {
	OS  OS     `yaml:"os" validate:"required"`
	URL string `yaml:"url" validate:"required,url"`
}

// Extension returns the archive extension of the mirror URL, including the
// leading dot. Compound tar extensions are kept whole.
func (m Mirror) Extension() string {
	p := m.URL
	if u, err := url.Parse(m.URL); err == nil && u.Path != "" {
		p = u.Path
	}
	base := strings.ToLower(path.Base(p))
	for _, compound := range []string{".tar.gz", ".tar.bz2", ".tar.xz"} {
		if strings.HasSuffix(base, compound) {
			return p[len(p)-len(compound):]
		}
	}
	return path.Ext(p)
}

// InputEntry describes a package to download.
type InputEntry struct {
	Name    string        `yaml:"name" validate:"required"`
	Hash    hashfold.Hash `yaml:"hash,omitempty"`
	Mirrors []Mirror      `yaml:"mirrors" validate:"required,min=1,dive"`
}

// VerifyDownloadHash checks a freshly computed download hash. An entry with
// no recorded hash adopts h; otherwise h must match.
func (e *InputEntry) VerifyDownloadHash(h hashfold.Hash) bool {
	if !e.Hash.IsValid() {
		e.Hash = h
		return true
	}
	return e.Hash.Equal(h)
}

// OutputEntry describes a part of an unpacked package copied into the tree.
// Source is relative to the unpack directory and may end in a glob.
type OutputEntry struct {
	Tag         string        `yaml:"tag" validate:"required"`
	Package     string        `yaml:"package" validate:"required"`
	Source      string        `yaml:"source" validate:"required"`
	Destination string        `yaml:"destination" validate:"required"`
	Hash        hashfold.Hash `yaml:"hash,omitempty"`
}

// Settings is the package manager configuration file.
type Settings struct {
	MaxConcurrentDownloads int           `yaml:"max_concurrent_downloads,omitempty" validate:"gte=0"`
	Inputs                 []InputEntry  `yaml:"inputs" validate:"dive"`
	Outputs                []OutputEntry `yaml:"outputs" validate:"dive"`
}

// Validate checks that every entry carries the fields a run needs. Name
// collisions and dangling package references are reported by New.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid package configuration: %w", err)
	}
	return nil
}

// ErrNoSettings is returned by LoadSettings when the file does not exist.
var ErrNoSettings = errors.New("package configuration not found")

// LoadSettings reads the settings file at path.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoSettings, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading package configuration: %w", err)
	}
	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

// SaveSettings writes s to path, hashes included.
func SaveSettings(path string, s *Settings) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding package configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding package configuration: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("writing package configuration: %w", err)
	}
	return nil
}

// SampleSettings returns a small configuration showing every field.
func SampleSettings() *Settings {
	return &Settings{
		MaxConcurrentDownloads: 3,
		Inputs: []InputEntry{{
			Name: "TestPackage",
			Mirrors: []Mirror{
				{OS: OSWindows, URL: "https://www.example.com/files/TestPackage.zip"},
				{OS: OSLinux, URL: "https://www.example.com/something/files/TestPackage.tar.gz"},
			},
		}},
		Outputs: []OutputEntry{
			{Tag: "Tag1", Package: "TestPackage", Source: "src/", Destination: "./TestPackage/"},
			{Tag: "Tag2", Package: "TestPackage", Source: "lib/test_package32.dll", Destination: "./External_DLL_32/"},
		},
	}
}

// DiscardHashes clears every recorded input and output hash.
func (s *Settings) DiscardHashes() {
	for i := range s.Inputs {
		s.Inputs[i].Hash = hashfold.Hash{}
	}
	for i := range s.Outputs {
		s.Outputs[i].Hash = hashfold.Hash{}
	}
}
