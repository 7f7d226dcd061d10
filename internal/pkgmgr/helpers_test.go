package pkgmgr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/papapumpkin/ccgtools/internal/hashfold"
)

// zipArchive builds a zip in memory from name → content.
func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// digestOf folds the digests of the given contents.
func digestOf(t *testing.T, contents ...string) hashfold.Hash {
	t.Helper()
	var total hashfold.Hash
	for _, c := range contents {
		h, err := hashfold.Reader(strings.NewReader(c))
		require.NoError(t, err)
		require.NoError(t, total.Fold(h))
	}
	return total
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dirOf(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func dirOf(path string) string {
	i := strings.LastIndexAny(path, `/\`)
	if i < 0 {
		return "."
	}
	return path[:i]
}

// fakeDownloader serves archives from memory and records concurrency.
type fakeDownloader struct {
	mu      sync.Mutex
	files   map[string][]byte
	failing map[string]bool
	delay   time.Duration
	calls   []string

	active atomic.Int32
	peak   atomic.Int32
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{files: make(map[string][]byte), failing: make(map[string]bool)}
}

func (d *fakeDownloader) serve(url string, data []byte) {
	d.files[url] = data
}

func (d *fakeDownloader) Download(ctx context.Context, url, dest string) error {
	n := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}

	d.mu.Lock()
	d.calls = append(d.calls, url)
	data, ok := d.files[url]
	failing := d.failing[url]
	d.mu.Unlock()

	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if failing || !ok {
		return fmt.Errorf("404 for %s", url)
	}
	return os.WriteFile(dest, data, 0o644)
}

func (d *fakeDownloader) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// recordingObserver keeps every transition.
type recordingObserver struct {
	transitions []Transition
}

func (o *recordingObserver) OnTransition(tr Transition) {
	o.transitions = append(o.transitions, tr)
}
