// Package fsutil holds file system helpers shared by both tools: a
// retrying directory cleaner and a plain file copy.
package fsutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Retry controls how often an operation is attempted.
type Retry struct {
	Attempts int
	Backoff  time.Duration
}

// Do runs fn until it succeeds or the attempts run out, waiting Backoff
// between attempts. It returns the last error.
func (r Retry) Do(ctx context.Context, fn func() error) error {
	attempts := max(r.Attempts, 1)
	var err error
	for i := range attempts {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(r.Backoff):
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}

// RetryQuiet runs fn like Retry.Do but swallows the final failure. It is
// for cleanup that must not stop the run.
func RetryQuiet(ctx context.Context, r Retry, fn func() error) {
	_ = r.Do(ctx, fn)
}

// CleanDirectory empties dir, creating it if needed. Contents are listed
// breadth-first; files are removed first, then directories deepest first.
// A failed pass is retried in full.
func CleanDirectory(ctx context.Context, dir string, r Retry) error {
	err := r.Do(ctx, func() error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		return cleanOnce(dir)
	})
	if err != nil {
		return fmt.Errorf("cleaning %s: %w", dir, err)
	}
	return nil
}

func cleanOnce(dir string) error {
	var files, dirs []string
	queue := []string{dir}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		entries, err := os.ReadDir(cur)
		if err != nil {
			return err
		}
		for _, e := range entries {
			p := filepath.Join(cur, e.Name())
			if e.IsDir() {
				dirs = append(dirs, p)
				queue = append(queue, p)
			} else {
				files = append(files, p)
			}
		}
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Remove(dirs[i]); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// CopyFile copies src to dst, creating dst's parent directories and
// preserving the source's permission bits.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}

// WriteFileAtomic writes data to a temporary sibling of path and renames it
// into place.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
