package pkgmgr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/papapumpkin/ccgtools/internal/telemetry"
)

// ErrSampleWritten is returned by Open when GENCONFIG found no settings
// file and wrote a sample one instead of running.
var ErrSampleWritten = errors.New("wrote sample package configuration")

// Flags are the command-line tokens of a package manager run.
type Flags struct {
	// Clean discards the manifest and rebuilds every output.
	Clean bool
	// GenConfig discards the manifest and all recorded hashes and writes
	// the settings file back, with fresh hashes, after a successful run.
	GenConfig bool
	// Unknown holds tokens that were not recognized.
	Unknown []string
}

// ParseFlags reads CLEAN and GENCONFIG case-insensitively.
func ParseFlags(args []string) Flags {
	var f Flags
	for _, arg := range args {
		switch strings.ToUpper(arg) {
		case "CLEAN":
			f.Clean = true
		case "GENCONFIG":
			f.GenConfig = true
		default:
			f.Unknown = append(f.Unknown, arg)
		}
	}
	return f
}

// Request is everything needed to open a package manager run.
type Request struct {
	Flags        Flags
	ConfigFile   string
	ManifestFile string
	Options      Options
}

// Session is an opened run: a Manager plus the files it reads and writes.
type Session struct {
	*Manager
	req   Request
	start time.Time
}

// Summary reports what a run did.
type Summary struct {
	Inputs          int
	Downloaded      int
	Outputs         int
	Built           int
	PeakDownloading int
	Elapsed         time.Duration
}

// Open loads the settings and manifest, honoring CLEAN and GENCONFIG, and
// returns a session whose states are initialized.
func Open(ctx context.Context, req Request, deps Deps) (*Session, error) {
	start := time.Now()
	for _, tok := range req.Flags.Unknown {
		deps.Log.Warn().Str("arg", tok).Msg("unknown command line argument")
	}

	settings, err := LoadSettings(req.ConfigFile)
	if errors.Is(err, ErrNoSettings) && req.Flags.GenConfig {
		if err := SaveSettings(req.ConfigFile, SampleSettings()); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrSampleWritten, req.ConfigFile)
	}
	if err != nil {
		return nil, err
	}

	if req.Flags.Clean || req.Flags.GenConfig {
		if err := DeleteManifest(req.ManifestFile); err != nil {
			return nil, err
		}
	}
	if req.Flags.GenConfig {
		settings.DiscardHashes()
	}

	manifest, err := OpenManifest(ctx, req.ManifestFile)
	if err != nil {
		return nil, err
	}
	m, err := New(settings, manifest, req.Options, deps)
	if err != nil {
		manifest.Close()
		return nil, err
	}
	if err := m.InitializeStates(ctx); err != nil {
		manifest.Close()
		return nil, err
	}
	_ = deps.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindRunStart, Data: map[string]any{
		"tool": "packages", "clean": req.Flags.Clean, "genconfig": req.Flags.GenConfig,
	}})
	return &Session{Manager: m, req: req, start: start}, nil
}

// Finish writes the settings file back when GENCONFIG was given. Call it
// after Run succeeded.
func (s *Session) Finish() (Summary, error) {
	sum := s.Summary()
	if s.req.Flags.GenConfig {
		if err := SaveSettings(s.req.ConfigFile, s.settings); err != nil {
			return sum, err
		}
	}
	_ = s.deps.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindRunDone, Data: sum})
	return sum, nil
}

// Summary reports progress so far.
func (s *Session) Summary() Summary {
	sum := Summary{
		Inputs:          len(s.inputs),
		Outputs:         len(s.outputs),
		Built:           s.built,
		PeakDownloading: s.peakDownloading,
		Elapsed:         time.Since(s.start),
	}
	for _, in := range s.inputs {
		if in.downloaded != "" {
			sum.Downloaded++
		}
	}
	return sum
}

// Close releases the manifest database.
func (s *Session) Close() error {
	return s.manifest.Close()
}
