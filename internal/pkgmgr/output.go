package pkgmgr

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/papapumpkin/ccgtools/internal/hashfold"
	"github.com/papapumpkin/ccgtools/internal/ident"
)

// OutputState is a step of the output pipeline.
type OutputState int

// Output states in pipeline order.
const (
	OutputWaitingOnInput OutputState = iota
	OutputCopyAndHash
	OutputFinished
	OutputError
)

// String returns the state label used in logs and the progress view.
func (s OutputState) String() string {
	switch s {
	case OutputWaitingOnInput:
		return "waiting on input"
	case OutputCopyAndHash:
		return "copy and hash"
	case OutputFinished:
		return "finished"
	case OutputError:
		return "error"
	default:
		return fmt.Sprintf("OutputState(%d)", int(s))
	}
}

// Output copies part of one unpacked package to its destination.
type Output struct {
	ID      ident.ID
	InputID ident.ID
	Entry   *OutputEntry

	state OutputState
	task  *Task[hashfold.Hash]
}

// Tag returns the output's tag.
func (o *Output) Tag() string { return o.Entry.Tag }

// State returns the current pipeline step.
func (o *Output) State() OutputState { return o.state }

// Service advances the output by at most one step without blocking.
func (o *Output) Service(ctx context.Context, m *Manager) error {
	switch o.state {
	case OutputWaitingOnInput:
		in := m.Input(o.InputID)
		if in == nil || in.State() != InputFinished {
			return nil
		}
		o.state = OutputCopyAndHash
		src := filepath.Join(m.opts.UnpackDir, filepath.FromSlash(o.Entry.Source))
		dst := m.resolve(o.Entry.Destination)
		o.task = Go(ctx, func(ctx context.Context) (hashfold.Hash, error) {
			return CopyAndHash(ctx, src, dst)
		})
	case OutputCopyAndHash:
		switch o.task.Status() {
		case StatusInProgress:
		case StatusSucceeded:
			h := o.task.Result()
			o.task = nil
			if err := m.recordOutput(ctx, o, h); err != nil {
				o.state = OutputError
				return fmt.Errorf("output %s: %w", o.Entry.Tag, err)
			}
			o.state = OutputFinished
		default:
			o.state = OutputError
			err := o.task.Err()
			if err == nil {
				err = errors.New("background task lost")
			}
			return fmt.Errorf("output %s: copy and hash: %w", o.Entry.Tag, err)
		}
	}
	return nil
}
