package tui

import (
	"context"

	"github.com/papapumpkin/ccgtools/internal/pkgmgr"
)

// Phase groups row states into the four ways the view draws them.
type Phase int

// Row phases.
const (
	PhaseWaiting Phase = iota
	PhaseWorking
	PhaseDone
	PhaseFailed
)

// Row is one input package or output artifact as the view shows it.
type Row struct {
	Kind  string // "input" or "output"
	Name  string
	State string
	Phase Phase
}

// Driver is the poll loop the model advances on every tick.
type Driver interface {
	Step(ctx context.Context) error
	Done() bool
	Snapshot() []Row
}

// ManagerDriver adapts a package manager to Driver.
type ManagerDriver struct {
	M *pkgmgr.Manager
}

// Step services every state machine once.
func (d ManagerDriver) Step(ctx context.Context) error { return d.M.Step(ctx) }

// Done reports whether every output is finished.
func (d ManagerDriver) Done() bool { return d.M.Done() }

// Snapshot lists inputs then outputs in configuration order.
func (d ManagerDriver) Snapshot() []Row {
	rows := make([]Row, 0, len(d.M.Inputs())+len(d.M.Outputs()))
	for _, in := range d.M.Inputs() {
		rows = append(rows, Row{Kind: "input", Name: in.Name(), State: in.State().String(), Phase: inputPhase(in.State())})
	}
	for _, o := range d.M.Outputs() {
		rows = append(rows, Row{Kind: "output", Name: o.Tag(), State: o.State().String(), Phase: outputPhase(o.State())})
	}
	return rows
}

func inputPhase(s pkgmgr.InputState) Phase {
	switch s {
	case pkgmgr.InputStart, pkgmgr.InputPendingDownload:
		return PhaseWaiting
	case pkgmgr.InputFinished:
		return PhaseDone
	case pkgmgr.InputError:
		return PhaseFailed
	default:
		return PhaseWorking
	}
}

func outputPhase(s pkgmgr.OutputState) Phase {
	switch s {
	case pkgmgr.OutputWaitingOnInput:
		return PhaseWaiting
	case pkgmgr.OutputCopyAndHash:
		return PhaseWorking
	case pkgmgr.OutputFinished:
		return PhaseDone
	default:
		return PhaseFailed
	}
}
