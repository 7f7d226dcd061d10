// Package reflector runs the enum reflection pipeline over a C++ source
// tree: it discovers projects and headers, reparses what changed, binds
// enum values and writes per-project registration files.
package reflector

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects between incremental and full regeneration.
type Mode int

const (
	ModeNormal Mode = iota // reuse the persisted snapshot
	ModeClean              // ignore persisted state, regenerate everything
)

// String returns the mode as spelled on the command line.
func (m Mode) String() string {
	if m == ModeClean {
		return "CLEAN"
	}
	return "NORMAL"
}

// ErrUsage is returned for malformed command-line arguments.
var ErrUsage = errors.New("usage: enums <NORMAL|CLEAN> <top-level-dir> <R32|R64|D32|D64>")

// Options configures one pipeline run.
type Options struct {
	Mode        Mode
	TopLevelDir string
	BuildSuffix string

	DatabasePath    string
	SkippedProjects []string
	ProjectGlob     string
	GeneratedDir    string
}

// ParseArgs validates the three positional arguments: execution mode,
// top-level directory and build suffix. Mode and suffix are case-insensitive.
func ParseArgs(args []string) (Options, error) {
	if len(args) != 3 {
		return Options{}, fmt.Errorf("%w: expected 3 arguments, got %d", ErrUsage, len(args))
	}
	var opts Options
	switch strings.ToUpper(args[0]) {
	case "NORMAL":
		opts.Mode = ModeNormal
	case "CLEAN":
		opts.Mode = ModeClean
	default:
		return Options{}, fmt.Errorf("%w: unknown execution mode %q", ErrUsage, args[0])
	}
	if strings.TrimSpace(args[1]) == "" {
		return Options{}, fmt.Errorf("%w: empty top-level directory", ErrUsage)
	}
	opts.TopLevelDir = args[1]

	suffix := strings.ToUpper(args[2])
	switch suffix {
	case "R32", "R64", "D32", "D64":
		opts.BuildSuffix = suffix
	default:
		return Options{}, fmt.Errorf("%w: unknown build suffix %q", ErrUsage, args[2])
	}
	return opts, nil
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.ProjectGlob == "" {
		o.ProjectGlob = "*.vcxproj"
	}
	if o.GeneratedDir == "" {
		o.GeneratedDir = "GeneratedCode"
	}
	return o
}
