// Package runlog writes the per-process diagnostic log of a tool run.
//
// Each process writes to <dir>/<Tool>Log_<pid>.txt. Older logs of the same
// tool are pruned when a new one is opened.
package runlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/phuslu/log"

	"github.com/papapumpkin/ccgtools/internal/fsutil"
)

// A log still held open by another process is retried briefly, then left
// for the next run.
const (
	pruneAttempts = 3
	pruneBackoff  = 20 * time.Millisecond
)

// Options configures Open.
type Options struct {
	Dir    string
	Tool   string
	Level  string
	MaxAge time.Duration
	// Now is used for pruning; defaults to time.Now.
	Now func() time.Time
}

// Logger is a leveled, structured log backed by a file. A nil *Logger is a
// valid no-op logger.
type Logger struct {
	path string
	file *os.File
	log  log.Logger
}

// FileName returns the log file name for tool and pid.
func FileName(tool string, pid int) string {
	return tool + "Log_" + strconv.Itoa(pid) + ".txt"
}

// Open prunes stale logs of the tool and creates this process's log file.
func Open(opts Options) (*Logger, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("runlog: create %s: %w", opts.Dir, err)
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	path := filepath.Join(opts.Dir, FileName(opts.Tool, os.Getpid()))
	Prune(opts.Dir, opts.Tool, now().Add(-opts.MaxAge), path)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	return &Logger{
		path: path,
		file: f,
		log: log.Logger{
			Level:      log.ParseLevel(opts.Level),
			TimeFormat: time.RFC3339,
			Writer:     &log.IOWriter{Writer: f},
		},
	}, nil
}

// Prune removes <Tool>Log_*.txt files in dir last modified before cutoff,
// except keep. Failures are swallowed.
func Prune(dir, tool string, cutoff time.Time, keep string) {
	matches, err := filepath.Glob(filepath.Join(dir, tool+"Log_*.txt"))
	if err != nil {
		return
	}
	retry := fsutil.Retry{Attempts: pruneAttempts, Backoff: pruneBackoff}
	for _, m := range matches {
		if m == keep {
			continue
		}
		info, err := os.Stat(m)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		fsutil.RetryQuiet(context.Background(), retry, func() error {
			if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			return nil
		})
	}
}

// Path returns the log file path, or "" for a nil logger.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Debug starts a debug entry.
func (l *Logger) Debug() *log.Entry {
	if l == nil {
		return nil
	}
	return l.log.Debug()
}

// Info starts an info entry.
func (l *Logger) Info() *log.Entry {
	if l == nil {
		return nil
	}
	return l.log.Info()
}

// Warn starts a warning entry.
func (l *Logger) Warn() *log.Entry {
	if l == nil {
		return nil
	}
	return l.log.Warn()
}

// Error starts an error entry.
func (l *Logger) Error() *log.Entry {
	if l == nil {
		return nil
	}
	return l.log.Error()
}

// Fatal records a run-ending error with its full chain and the current
// goroutine stack. It does not exit.
func (l *Logger) Fatal(err error) {
	if l == nil || err == nil {
		return
	}
	l.log.Error().Str("chain", fmt.Sprintf("%+v", err)).Stack().Msg(err.Error())
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
