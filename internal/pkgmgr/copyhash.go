package pkgmgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/papapumpkin/ccgtools/internal/hashfold"
)

// ErrNoSourceFiles is returned when an output source matches nothing.
var ErrNoSourceFiles = errors.New("output source matches no files")

// CopyAndHash copies source into dest and returns the folded digest of every
// copied file. A directory source is copied recursively with its contents
// placed directly under dest. Otherwise the last path component is a glob
// and the matching files are copied into dest.
func CopyAndHash(ctx context.Context, source, dest string) (hashfold.Hash, error) {
	var total hashfold.Hash
	copyOne := func(src, dst string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, err := copyAndDigest(src, dst)
		if err != nil {
			return err
		}
		return total.Fold(h)
	}

	info, err := os.Stat(source)
	if err == nil && info.IsDir() {
		err = filepath.WalkDir(source, func(p string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(source, p)
			if err != nil {
				return err
			}
			return copyOne(p, filepath.Join(dest, rel))
		})
		if err != nil {
			return hashfold.Hash{}, fmt.Errorf("copying %s: %w", source, err)
		}
		if !total.IsValid() {
			return hashfold.Hash{}, fmt.Errorf("%w: %s", ErrNoSourceFiles, source)
		}
		return total, nil
	}

	matches, err := filepath.Glob(source)
	if err != nil {
		return hashfold.Hash{}, fmt.Errorf("copying %s: %w", source, err)
	}
	copied := 0
	for _, m := range matches {
		if fi, err := os.Stat(m); err != nil || fi.IsDir() {
			continue
		}
		if err := copyOne(m, filepath.Join(dest, filepath.Base(m))); err != nil {
			return hashfold.Hash{}, fmt.Errorf("copying %s: %w", m, err)
		}
		copied++
	}
	if copied == 0 {
		return hashfold.Hash{}, fmt.Errorf("%w: %s", ErrNoSourceFiles, source)
	}
	return total, nil
}

// copyAndDigest copies one file while hashing what it reads.
func copyAndDigest(src, dst string) (hashfold.Hash, error) {
	in, err := os.Open(src)
	if err != nil {
		return hashfold.Hash{}, err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return hashfold.Hash{}, err
	}
	out, err := os.Create(dst)
	if err != nil {
		return hashfold.Hash{}, err
	}
	h, err := hashfold.Reader(io.TeeReader(in, out))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return hashfold.Hash{}, fmt.Errorf("%s: %w", src, err)
	}
	return h, nil
}
