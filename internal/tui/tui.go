package tui

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// NewProgram creates a BubbleTea program that drives d until it is done.
// The view stays in the normal screen buffer so the final state remains
// visible after exit.
func NewProgram(ctx context.Context, d Driver, interval time.Duration, opts ...tea.ProgramOption) *tea.Program {
	allOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	allOpts = append(allOpts, opts...)
	return tea.NewProgram(NewModel(ctx, d, interval), allOpts...)
}

// Run drives d through the progress view, blocking until every output is
// finished, a step fails, or the user quits.
func Run(ctx context.Context, d Driver, interval time.Duration, opts ...tea.ProgramOption) error {
	final, err := NewProgram(ctx, d, interval, opts...).Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	if m, ok := final.(Model); ok && m.Err != nil {
		return m.Err
	}
	return nil
}

// WithOutput returns a program option that renders the view to w instead of
// stdout.
func WithOutput(w io.Writer) tea.ProgramOption {
	return tea.WithOutput(w)
}
