package pkgmgr

import (
	"context"
	"fmt"
)

// Status is the completion state of a background task as seen by the poll
// loop.
type Status int

// Task statuses.
const (
	StatusInvalid Status = iota
	StatusInProgress
	StatusSucceeded
	StatusFailed
)

// String returns a short lowercase label.
func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in progress"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Task runs one piece of work in its own goroutine. Completion is signalled
// by closing done; result and err are written before the close and read
// only after it.
type Task[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Go starts fn in the background. A panic inside fn fails the task.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		t.result, t.err = fn(ctx)
	}()
	return t
}

// Status polls the task without blocking. A nil task is Invalid.
func (t *Task[T]) Status() Status {
	if t == nil {
		return StatusInvalid
	}
	select {
	case <-t.done:
		if t.err != nil {
			return StatusFailed
		}
		return StatusSucceeded
	default:
		return StatusInProgress
	}
}

// Result returns the task's value. It is the zero value until the task has
// succeeded.
func (t *Task[T]) Result() T {
	var zero T
	if t.Status() != StatusSucceeded {
		return zero
	}
	return t.result
}

// Err returns the task's failure, or nil while it is running or after it
// succeeded.
func (t *Task[T]) Err() error {
	if t.Status() != StatusFailed {
		return nil
	}
	return t.err
}
