// Package ui writes short, styled status lines for the command-line tools.
package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/papapumpkin/ccgtools/internal/pkgmgr"
	"github.com/papapumpkin/ccgtools/internal/reflector"
)

var (
	colorPrimary = lipgloss.Color("#00BFFF")
	colorSuccess = lipgloss.Color("#00E676")
	colorWarn    = lipgloss.Color("#FFD700")
	colorDanger  = lipgloss.Color("#FF5252")
	colorMuted   = lipgloss.Color("#8C8C8C")
)

var (
	styleTitle   = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess)
	styleWarn    = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
)

// Printer writes status lines. It is safe to use from the goroutine that
// drives a run; it does no locking of its own.
type Printer struct {
	w io.Writer
}

// New returns a Printer writing to stderr.
func New() *Printer {
	return &Printer{w: os.Stderr}
}

// NewWriter returns a Printer writing to w.
func NewWriter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Banner announces a tool run.
func (p *Printer) Banner(tool, detail string) {
	p.line("%s %s", styleTitle.Render("▶ "+tool), styleMuted.Render(detail))
}

// Info prints a de-emphasized line.
func (p *Printer) Info(msg string) {
	p.line("%s", styleMuted.Render(msg))
}

// Warn prints a warning.
func (p *Printer) Warn(msg string) {
	p.line("%s %s", styleWarn.Render("⚠"), msg)
}

// Error prints an error message.
func (p *Printer) Error(msg string) {
	p.line("%s%s", styleError.Render("error: "), msg)
}

// ToolFailed tells the user where the details of a failed run went.
func (p *Printer) ToolFailed(tool, logPath string) {
	if logPath == "" {
		p.line("%s", styleError.Render(fmt.Sprintf("There was an error running %s.", tool)))
		return
	}
	p.line("%s", styleError.Render(fmt.Sprintf("There was an error running %s. See %s for details.", tool, logPath)))
}

// EnumSummary reports the outcome of an enum reflection run.
func (p *Printer) EnumSummary(s reflector.Summary) {
	p.line("%s %s", styleSuccess.Render("✓ enums"), styleMuted.Render(fmt.Sprintf(
		"%s %s, %d project(s), %d header(s), %d reparsed (%s)",
		s.Mode, s.BuildSuffix, s.Projects, s.Headers, s.Reparsed, formatDuration(s.Elapsed))))

	if len(s.Enums) > 0 {
		states := make([]string, 0, len(s.Enums))
		for state := range s.Enums {
			states = append(states, state)
		}
		sort.Strings(states)
		parts := make([]string, 0, len(states))
		for _, state := range states {
			parts = append(parts, fmt.Sprintf("%d %s", s.Enums[state], state))
		}
		p.line("  enums: %s", strings.Join(parts, ", "))
	}
	if len(s.Regenerated) == 0 {
		p.line("  %s", styleMuted.Render("no projects needed regeneration"))
		return
	}
	for _, name := range s.Regenerated {
		p.line("  %s %s", styleSuccess.Render("+"), name)
	}
}

// WatchResult reports one pass of watch mode.
func (p *Printer) WatchResult(s reflector.Summary, err error) {
	if err != nil {
		p.Error(err.Error())
		return
	}
	p.EnumSummary(s)
}

// OnTransition prints the console line for a package manager state change.
// It makes a Printer usable as a pkgmgr.Observer.
func (p *Printer) OnTransition(tr pkgmgr.Transition) {
	if msg := transitionMessage(tr); msg != "" {
		p.line("%s", msg)
	}
}

func transitionMessage(tr pkgmgr.Transition) string {
	if tr.Kind == "output" {
		switch tr.To {
		case pkgmgr.OutputCopyAndHash.String():
			return "Building output: " + tr.Name
		case pkgmgr.OutputFinished.String():
			return styleSuccess.Render("Successfully built output: " + tr.Name)
		case pkgmgr.OutputError.String():
			return styleError.Render("Failed to build output: " + tr.Name)
		}
		return ""
	}
	switch tr.To {
	case pkgmgr.InputDownloading.String():
		return "Downloading package: " + tr.Name
	case pkgmgr.InputHashingDownload.String():
		return "Hashing package: " + tr.Name
	case pkgmgr.InputDecompressing.String():
		return "Decompressing package: " + tr.Name
	case pkgmgr.InputFinished.String():
		return styleSuccess.Render("Successfully unpacked package: " + tr.Name)
	case pkgmgr.InputError.String():
		return styleError.Render("Failed to process package: " + tr.Name)
	}
	return ""
}

// PackageSummary reports the outcome of a package manager run.
func (p *Printer) PackageSummary(s pkgmgr.Summary) {
	p.line("%s %s", styleSuccess.Render("✓ packages"), styleMuted.Render(fmt.Sprintf(
		"%d/%d package(s) downloaded, %d/%d output(s) built (%s)",
		s.Downloaded, s.Inputs, s.Built, s.Outputs, formatDuration(s.Elapsed))))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
