package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/papapumpkin/ccgtools/internal/config"
	"github.com/papapumpkin/ccgtools/internal/instlock"
	"github.com/papapumpkin/ccgtools/internal/runlog"
	"github.com/papapumpkin/ccgtools/internal/telemetry"
	"github.com/papapumpkin/ccgtools/internal/ui"
)

// errReported marks a failure the user has already been told about.
var errReported = errors.New("tool failed")

// toolRun holds what every tool command sets up before doing its work:
// the instance lock, the per-process log and the optional telemetry stream.
type toolRun struct {
	name      string
	cfg       config.Config
	printer   *ui.Printer
	lock      *instlock.Lock
	log       *runlog.Logger
	telemetry *telemetry.Emitter
}

// startTool loads configuration, takes the tool's instance lock and opens
// its run log. A second instance fails here, before touching any state.
func startTool(name string, telemetryFile func(config.Config) string) (*toolRun, error) {
	printer := ui.New()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lock, err := instlock.Acquire(cfg.LockDir, name)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if cfg.Verbose {
		level = "debug"
	}
	log, err := runlog.Open(runlog.Options{Dir: cfg.LogDir, Tool: name, Level: level, MaxAge: cfg.LogMaxAge})
	if err != nil {
		lock.Release()
		return nil, err
	}

	t := &toolRun{name: name, cfg: cfg, printer: printer, lock: lock, log: log}
	if path := telemetryFile(cfg); path != "" {
		em, err := telemetry.NewEmitter(path)
		if err != nil {
			// Telemetry is optional; the run goes on without it.
			log.Warn().Err(err).Msg("telemetry disabled")
		} else {
			t.telemetry = em
		}
	}
	log.Info().Str("tool", name).Str("run", t.telemetry.RunID()).Int("pid", os.Getpid()).Msg("started")
	return t, nil
}

// fail records err in the run log and points the user at it.
func (t *toolRun) fail(err error) error {
	t.log.Fatal(err)
	t.printer.ToolFailed(t.name, t.log.Path())
	return fmt.Errorf("%w: %w", errReported, err)
}

// close releases everything startTool acquired.
func (t *toolRun) close() {
	t.log.Info().Msg("finished")
	_ = t.telemetry.Close()
	_ = t.log.Close()
	_ = t.lock.Release()
}

// dataPath anchors a relative file name in the configured data directory.
func dataPath(cfg config.Config, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(cfg.DataDir, name)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
