package pkgmgr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/papapumpkin/ccgtools/internal/hashfold"
)

// HashOptions bound the fan-out of HashPath.
type HashOptions struct {
	// MaxWorkers caps the number of concurrent sub-workers.
	MaxWorkers int
	// BatchBytes is the cumulative file size at which a batch is dispatched.
	BatchBytes int64
}

func (o HashOptions) withDefaults() HashOptions {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = 8
	}
	if o.BatchBytes <= 0 {
		o.BatchBytes = 2_000_000
	}
	return o
}

type hashFile struct {
	path string
	size int64
}

// hashQueue walks a tree breadth-first, handing out files in batches.
type hashQueue struct {
	files []hashFile
	dirs  []string
}

func (q *hashQueue) more() bool {
	return len(q.files) > 0 || len(q.dirs) > 0
}

// next collects files until their sizes reach limit, expanding directories
// only when no files are queued.
func (q *hashQueue) next(limit int64) ([]string, error) {
	var batch []string
	var total int64
	for q.more() && total < limit {
		if len(q.files) == 0 {
			dir := q.dirs[0]
			q.dirs = q.dirs[1:]
			entries, err := os.ReadDir(dir)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				p := filepath.Join(dir, e.Name())
				if e.IsDir() {
					q.dirs = append(q.dirs, p)
					continue
				}
				info, err := e.Info()
				if err != nil {
					return nil, err
				}
				q.files = append(q.files, hashFile{path: p, size: info.Size()})
			}
			continue
		}
		for len(q.files) > 0 && total < limit {
			f := q.files[0]
			q.files = q.files[1:]
			batch = append(batch, f.path)
			total += f.size
		}
	}
	return batch, nil
}

// HashPath returns the folded digest of every file under root, or of root
// itself when it is a file. Batches are hashed by at most opts.MaxWorkers
// sub-workers; their results are folded as they arrive, so visiting order
// does not affect the result.
func HashPath(ctx context.Context, root string, opts HashOptions) (hashfold.Hash, error) {
	opts = opts.withDefaults()
	info, err := os.Stat(root)
	if err != nil {
		return hashfold.Hash{}, fmt.Errorf("hashing %s: %w", root, err)
	}
	q := &hashQueue{}
	if info.IsDir() {
		q.dirs = append(q.dirs, root)
	} else {
		q.files = append(q.files, hashFile{path: root, size: info.Size()})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxWorkers)

	// At most MaxWorkers results are outstanding, so sends never block.
	responses := make(chan hashfold.Hash, opts.MaxWorkers)
	fail := func(err error) (hashfold.Hash, error) {
		cancel()
		if werr := g.Wait(); werr != nil {
			err = werr
		}
		return hashfold.Hash{}, fmt.Errorf("hashing %s: %w", root, err)
	}

	var total hashfold.Hash
	var held []string
	pending := 0
	for q.more() || held != nil || pending > 0 {
		if held == nil && q.more() {
			batch, err := q.next(opts.BatchBytes)
			if err != nil {
				return fail(err)
			}
			if len(batch) > 0 {
				held = batch
			}
		}
		if held != nil && pending < opts.MaxWorkers {
			batch := held
			if g.TryGo(func() error { return hashBatch(gctx, batch, responses) }) {
				held = nil
				pending++
				continue
			}
		}
		if pending == 0 {
			// A finished sub-worker may still hold its slot for a moment.
			runtime.Gosched()
			continue
		}
		select {
		case h := <-responses:
			pending--
			if err := total.Fold(h); err != nil {
				return fail(err)
			}
		case <-gctx.Done():
			return fail(gctx.Err())
		}
	}
	if err := g.Wait(); err != nil {
		return hashfold.Hash{}, fmt.Errorf("hashing %s: %w", root, err)
	}
	return total, nil
}

// hashBatch folds the digests of files and reports the result.
func hashBatch(ctx context.Context, files []string, responses chan<- hashfold.Hash) error {
	var local hashfold.Hash
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, err := hashfold.File(f)
		if err != nil {
			return err
		}
		if err := local.Fold(h); err != nil {
			return err
		}
	}
	responses <- local
	return nil
}
