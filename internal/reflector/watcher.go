package reflector

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change is a debounced change to a header or project file.
type Change struct {
	File    string
	Removed bool
}

// Watcher monitors the top-level directory tree for header and project
// file changes using fsnotify.
type Watcher struct {
	Dir     string
	Changes <-chan Change // Read-only external channel

	generatedDir string
	projectExt   string
	changes      chan Change
	quit         chan struct{}
	done         chan struct{}
	watcher      *fsnotify.Watcher
}

// NewWatcher creates a watcher for dir. Files under generatedDir are
// ignored.
func NewWatcher(dir string, opts Options) (*Watcher, error) {
	opts = opts.withDefaults()
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ch := make(chan Change, 16)
	return &Watcher{
		Dir:          dir,
		Changes:      ch,
		generatedDir: opts.GeneratedDir,
		projectExt:   filepath.Ext(opts.ProjectGlob),
		changes:      ch,
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		watcher:      fw,
	}, nil
}

// Start adds every non-generated directory under Dir and begins watching.
func (w *Watcher) Start() error {
	err := filepath.WalkDir(w.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == w.generatedDir || (path != w.Dir && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
	if err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and channels. Changes nobody has read are
// dropped.
func (w *Watcher) Stop() {
	close(w.quit)
	w.watcher.Close()
	<-w.done
	close(w.changes)
}

// send delivers c unless the watcher is stopping.
func (w *Watcher) send(c Change) bool {
	select {
	case w.changes <- c:
		return true
	case <-w.quit:
		return false
	}
}

func (w *Watcher) loop() {
	defer close(w.done)

	const debounce = 100 * time.Millisecond
	pending := make(map[string]time.Time)
	removed := make(map[string]bool)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) && w.isWatchableDir(event.Name) {
				_ = w.watcher.Add(event.Name)
				continue
			}
			if !w.isTracked(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = time.Now()
				removed[event.Name] = event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
			}

		case now := <-ticker.C:
			for file, t := range pending {
				if now.Sub(t) >= debounce {
					if !w.send(Change{File: file, Removed: removed[file]}) {
						return
					}
					delete(pending, file)
					delete(removed, file)
				}
			}

		case <-w.quit:
			return

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Ignore watch errors; they're non-fatal.
		}
	}
}

func (w *Watcher) isWatchableDir(path string) bool {
	if filepath.Base(path) == w.generatedDir {
		return false
	}
	return isDir(path)
}

// isTracked reports whether a change to name can affect the generated code.
func (w *Watcher) isTracked(name string) bool {
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part == w.generatedDir {
			return false
		}
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".h" || ext == ".hpp" || (w.projectExt != "" && ext == strings.ToLower(w.projectExt))
}

// Watch runs the pipeline once, then again after every batch of changes
// until ctx is cancelled. Each result is passed to report.
func Watch(ctx context.Context, opts Options, deps Deps, report func(Summary, error)) error {
	w, err := NewWatcher(opts.TopLevelDir, opts)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		w.watcher.Close()
		return err
	}
	defer w.Stop()

	report(Run(ctx, opts, deps))
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-w.Changes:
			if !ok {
				return nil
			}
			deps.Log.Info().Str("file", change.File).Bool("removed", change.Removed).Msg("change detected")
			drain(w.Changes)
			report(Run(ctx, opts, deps))
		}
	}
}

// drain discards changes already queued so one run covers a burst of edits.
func drain(ch <-chan Change) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
