package pkgmgr

import (
	"context"
	"errors"
	"fmt"

	"github.com/papapumpkin/ccgtools/internal/hashfold"
	"github.com/papapumpkin/ccgtools/internal/ident"
)

// ErrHashMismatch is returned when a download does not match its recorded hash.
var ErrHashMismatch = errors.New("download hash check failure")

// InputState is a step of the input package pipeline.
type InputState int

// Input states in pipeline order.
const (
	InputStart InputState = iota
	InputPendingDownload
	InputDownloading
	InputHashingDownload
	InputDecompressing
	InputFinished
	InputError
)

// String returns the state label used in logs and the progress view.
func (s InputState) String() string {
	switch s {
	case InputStart:
		return "start"
	case InputPendingDownload:
		return "pending download"
	case InputDownloading:
		return "downloading"
	case InputHashingDownload:
		return "hashing download"
	case InputDecompressing:
		return "decompressing"
	case InputFinished:
		return "finished"
	case InputError:
		return "error"
	default:
		return fmt.Sprintf("InputState(%d)", int(s))
	}
}

// Input drives one package from download to unpacked files.
type Input struct {
	ID    ident.ID
	Entry *InputEntry

	state      InputState
	downloaded string
	download   *Task[string]
	hash       *Task[hashfold.Hash]
	unpack     *Task[struct{}]
}

// Name returns the package name.
func (in *Input) Name() string { return in.Entry.Name }

// State returns the current pipeline step.
func (in *Input) State() InputState { return in.state }

// Service advances the input by at most one step. It never blocks: while a
// background task is running it returns without change.
func (in *Input) Service(ctx context.Context, m *Manager) error {
	switch in.state {
	case InputStart:
		in.state = InputPendingDownload
	case InputPendingDownload:
		if m.CountInputs(InputDownloading) >= m.maxDownloads {
			return nil
		}
		in.state = InputDownloading
		entry := *in.Entry
		in.download = Go(ctx, func(ctx context.Context) (string, error) {
			return DownloadPackage(ctx, m.downloader, entry, m.opts.OS, m.opts.DownloadDir, m.deps.Log)
		})
	case InputDownloading:
		return in.afterDownload(ctx, m)
	case InputHashingDownload:
		return in.afterHash(ctx, m)
	case InputDecompressing:
		switch in.unpack.Status() {
		case StatusInProgress:
		case StatusSucceeded:
			in.state = InputFinished
			in.unpack = nil
		default:
			return in.fail("decompress", in.unpack.Err())
		}
	}
	return nil
}

func (in *Input) afterDownload(ctx context.Context, m *Manager) error {
	switch in.download.Status() {
	case StatusInProgress:
		return nil
	case StatusSucceeded:
		in.downloaded = in.download.Result()
		in.download = nil
		in.state = InputHashingDownload
		file, opts := in.downloaded, m.opts.Hash
		in.hash = Go(ctx, func(ctx context.Context) (hashfold.Hash, error) {
			return HashPath(ctx, file, opts)
		})
		return nil
	default:
		return in.fail("download", in.download.Err())
	}
}

func (in *Input) afterHash(ctx context.Context, m *Manager) error {
	switch in.hash.Status() {
	case StatusInProgress:
		return nil
	case StatusSucceeded:
		h := in.hash.Result()
		in.hash = nil
		if !in.Entry.VerifyDownloadHash(h) {
			return in.fail("verify", fmt.Errorf("%w: got %s, want %s", ErrHashMismatch, h, in.Entry.Hash))
		}
		in.state = InputDecompressing
		file, dir := in.downloaded, m.opts.UnpackDir
		in.unpack = Go(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, Decompress(ctx, file, dir)
		})
		return nil
	default:
		return in.fail("hash", in.hash.Err())
	}
}

func (in *Input) fail(step string, err error) error {
	in.state = InputError
	if err == nil {
		err = errors.New("background task lost")
	}
	return fmt.Errorf("package %s: %s: %w", in.Entry.Name, step, err)
}
