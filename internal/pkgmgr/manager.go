package pkgmgr

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/papapumpkin/ccgtools/internal/fsutil"
	"github.com/papapumpkin/ccgtools/internal/hashfold"
	"github.com/papapumpkin/ccgtools/internal/ident"
	"github.com/papapumpkin/ccgtools/internal/runlog"
	"github.com/papapumpkin/ccgtools/internal/telemetry"
)

// Configuration errors detected by New.
var (
	ErrDuplicatePackage = errors.New("two input packages have the same name")
	ErrUnknownPackage   = errors.New("output entry has invalid package source")
	ErrDuplicateTag     = errors.New("two output entries have the same tag")
)

// Options configure a Manager. Relative directories are resolved against
// RootDir.
type Options struct {
	RootDir     string
	DownloadDir string
	UnpackDir   string
	// MaxConcurrentDownloads applies when the settings file leaves it unset.
	MaxConcurrentDownloads int
	Hash                   HashOptions
	PollInterval           time.Duration
	Clean                  fsutil.Retry
	OS                     OS
}

// Transition describes one state change of an input or output.
type Transition struct {
	Kind        string // "input" or "output"
	Name        string
	From, To    string
	Downloading int
}

// Observer is told about every state change made by the poll loop.
type Observer interface {
	OnTransition(Transition)
}

// Deps are the collaborators of a Manager. Nil fields fall back to
// HTTPDownloader and no-op logging, telemetry and observation.
type Deps struct {
	Downloader Downloader
	Log        *runlog.Logger
	Telemetry  *telemetry.Emitter
	Observer   Observer
}

// Manager owns the input and output state machines of one run.
type Manager struct {
	settings *Settings
	manifest *Manifest
	opts     Options
	deps     Deps

	downloader   Downloader
	maxDownloads int
	limiter      *rate.Limiter

	inputs  []*Input
	outputs []*Output
	byID    map[ident.ID]*Input

	peakDownloading int
	built           int
}

// New validates settings and builds one state machine per input and
// output. Package names and output tags are compared case-insensitively.
func New(settings *Settings, manifest *Manifest, opts Options, deps Deps) (*Manager, error) {
	m := &Manager{
		settings:   settings,
		manifest:   manifest,
		opts:       opts,
		deps:       deps,
		downloader: deps.Downloader,
		byID:       make(map[ident.ID]*Input),
	}
	if m.downloader == nil {
		m.downloader = HTTPDownloader{}
	}
	if m.opts.OS == OSInvalid {
		m.opts.OS = CurrentOS()
	}
	if m.opts.PollInterval <= 0 {
		m.opts.PollInterval = 2 * time.Millisecond
	}
	m.opts.DownloadDir = m.resolve(m.opts.DownloadDir)
	m.opts.UnpackDir = m.resolve(m.opts.UnpackDir)
	m.limiter = rate.NewLimiter(rate.Every(m.opts.PollInterval), 1)

	m.maxDownloads = settings.MaxConcurrentDownloads
	if m.maxDownloads <= 0 {
		m.maxDownloads = opts.MaxConcurrentDownloads
	}
	if m.maxDownloads <= 0 {
		m.maxDownloads = 3
	}

	inputIDs := ident.NewRegistry("package")
	for i := range settings.Inputs {
		entry := &settings.Inputs[i]
		id, err := inputIDs.MustRegisterNew(entry.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDuplicatePackage, err)
		}
		in := &Input{ID: id, Entry: entry, state: InputFinished}
		m.inputs = append(m.inputs, in)
		m.byID[id] = in
	}

	outputIDs := ident.NewRegistry("output")
	for i := range settings.Outputs {
		entry := &settings.Outputs[i]
		inputID, ok := inputIDs.Lookup(entry.Package)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPackage, entry.Package)
		}
		id, err := outputIDs.MustRegisterNew(entry.Tag)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDuplicateTag, err)
		}
		m.outputs = append(m.outputs, &Output{ID: id, InputID: inputID, Entry: entry})
	}
	return m, nil
}

// resolve anchors a relative path at RootDir.
func (m *Manager) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.opts.RootDir == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(m.opts.RootDir, p)
}

// Settings returns the settings the manager runs on, including any hashes
// adopted during the run.
func (m *Manager) Settings() *Settings { return m.settings }

// Inputs returns the input state machines in configuration order.
func (m *Manager) Inputs() []*Input { return m.inputs }

// Outputs returns the output state machines in configuration order.
func (m *Manager) Outputs() []*Output { return m.outputs }

// Input returns the input with the given ID, or nil.
func (m *Manager) Input(id ident.ID) *Input { return m.byID[id] }

// MaxConcurrentDownloads returns the admission cap in effect.
func (m *Manager) MaxConcurrentDownloads() int { return m.maxDownloads }

// CountInputs returns how many inputs are in state s.
func (m *Manager) CountInputs(s InputState) int {
	n := 0
	for _, in := range m.inputs {
		if in.state == s {
			n++
		}
	}
	return n
}

// PeakDownloading returns the highest number of simultaneous downloads seen.
func (m *Manager) PeakDownloading() int { return m.peakDownloading }

// InitializeStates prepares the working directories and decides what must
// be rebuilt. An output is up to date when the manifest holds a valid hash
// equal to its configured hash. Outputs sharing a destination with a stale
// output are rebuilt too, every stale destination is emptied, and only the
// inputs feeding stale outputs are downloaded.
func (m *Manager) InitializeStates(ctx context.Context) error {
	for _, dir := range []string{m.opts.DownloadDir, m.opts.UnpackDir} {
		if err := fsutil.CleanDirectory(ctx, dir, m.opts.Clean); err != nil {
			return err
		}
	}

	recorded, err := m.manifest.All(ctx)
	if err != nil {
		return err
	}
	for _, o := range m.outputs {
		h, ok := recorded[ident.Normalize(o.Entry.Tag)]
		if ok && h.IsValid() && h.Equal(o.Entry.Hash) {
			o.state = OutputFinished
		} else {
			o.state = OutputWaitingOnInput
		}
	}

	for _, outer := range m.outputs {
		if outer.state == OutputFinished {
			continue
		}
		for _, inner := range m.outputs {
			if m.resolve(inner.Entry.Destination) == m.resolve(outer.Entry.Destination) {
				inner.state = outer.state
			}
		}
	}

	cleaned := make(map[string]bool)
	for _, o := range m.outputs {
		if o.state == OutputFinished {
			continue
		}
		dest := m.resolve(o.Entry.Destination)
		if cleaned[dest] {
			continue
		}
		cleaned[dest] = true
		if err := fsutil.CleanDirectory(ctx, dest, m.opts.Clean); err != nil {
			return err
		}
	}

	for _, in := range m.inputs {
		in.state = InputFinished
	}
	for _, o := range m.outputs {
		if o.state != OutputFinished {
			m.byID[o.InputID].state = InputStart
		}
	}

	for _, o := range m.outputs {
		m.deps.Log.Info().Str("output", o.Entry.Tag).Str("state", o.state.String()).Msg("initial output state")
	}
	for _, in := range m.inputs {
		m.deps.Log.Info().Str("package", in.Entry.Name).Str("state", in.state.String()).Msg("initial input state")
	}
	return nil
}

// Done reports whether every output is finished.
func (m *Manager) Done() bool {
	for _, o := range m.outputs {
		if o.state != OutputFinished {
			return false
		}
	}
	return true
}

// Step services every input, then every output, once. The first failure
// ends the step and is returned; it is fatal for the run.
func (m *Manager) Step(ctx context.Context) error {
	for _, in := range m.inputs {
		before := in.state
		err := in.Service(ctx, m)
		if in.state != before {
			m.transition("input", in.Entry.Name, before.String(), in.state.String())
		}
		if err != nil {
			return err
		}
	}
	for _, o := range m.outputs {
		before := o.state
		err := o.Service(ctx, m)
		if o.state != before {
			m.transition("output", o.Entry.Tag, before.String(), o.state.String())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Run polls the state machines until every output is finished, a step
// fails, or ctx is done. Background tasks still running on return are
// cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for !m.Done() {
		if err := m.Step(ctx); err != nil {
			return err
		}
		if m.Done() {
			break
		}
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) transition(kind, name, from, to string) {
	downloading := m.CountInputs(InputDownloading)
	m.peakDownloading = max(m.peakDownloading, downloading)

	m.deps.Log.Info().Str(kind, name).Str("from", from).Str("to", to).Msg("state change")
	eventKind := telemetry.KindInputState
	if kind == "output" {
		eventKind = telemetry.KindOutputState
	}
	_ = m.deps.Telemetry.Emit(telemetry.Event{
		Kind:    eventKind,
		Subject: name,
		Data:    map[string]string{"from": from, "to": to},
	})
	if m.deps.Observer != nil {
		m.deps.Observer.OnTransition(Transition{
			Kind: kind, Name: name, From: from, To: to, Downloading: downloading,
		})
	}
}

// recordOutput stores a freshly built output's hash in the manifest and in
// its configuration entry.
func (m *Manager) recordOutput(ctx context.Context, o *Output, h hashfold.Hash) error {
	if err := m.manifest.Put(ctx, o.Entry.Tag, h); err != nil {
		return err
	}
	o.Entry.Hash = h
	m.built++
	_ = m.deps.Telemetry.Emit(telemetry.Event{
		Kind:    telemetry.KindManifestUpdated,
		Subject: o.Entry.Tag,
		Data:    map[string]string{"hash": h.String()},
	})
	return nil
}
