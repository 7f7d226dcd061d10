package reflector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/papapumpkin/ccgtools/internal/enumdb"
	"github.com/papapumpkin/ccgtools/internal/enumparse"
	"github.com/papapumpkin/ccgtools/internal/runlog"
	"github.com/papapumpkin/ccgtools/internal/telemetry"
	"github.com/papapumpkin/ccgtools/internal/tracker"
)

// HeaderParser extracts the tagged enums of one header.
type HeaderParser interface {
	ParseHeader(ctx context.Context, path string, src []byte) ([]*enumdb.EnumRecord, error)
}

// Deps are the collaborators of a run. Zero values are usable: the parser
// defaults to the tree-sitter parser, logging and telemetry to no-ops.
type Deps struct {
	Parser    HeaderParser
	Log       *runlog.Logger
	Telemetry *telemetry.Emitter
}

// Summary reports what a run did.
type Summary struct {
	Mode        Mode
	BuildSuffix string
	Projects    int
	Headers     int
	Reparsed    int
	// Enums counts enums by state: new, deleted, dirty, unchanged.
	Enums       map[string]int
	Regenerated []string
	Files       []string
	Elapsed     time.Duration
}

// Run executes one reflection pass.
func Run(ctx context.Context, opts Options, deps Deps) (Summary, error) {
	start := time.Now()
	opts = opts.withDefaults()
	if deps.Parser == nil {
		deps.Parser = enumparse.New()
	}
	log := deps.Log
	sum := Summary{Mode: opts.Mode, BuildSuffix: opts.BuildSuffix, Enums: make(map[string]int)}

	_ = deps.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindRunStart, Data: map[string]string{
		"tool": "enums", "mode": opts.Mode.String(), "suffix": opts.BuildSuffix,
	}})

	store := enumdb.TOMLStore{Path: opts.DatabasePath}
	snap, err := loadSnapshot(store, opts.Mode)
	if err != nil {
		return sum, err
	}

	tc := tracker.NewContext(opts.SkippedProjects)
	if err := tc.LoadSnapshot(snap); err != nil {
		return sum, err
	}

	projectFiles, err := DiscoverProjects(opts.TopLevelDir, opts.ProjectGlob, opts.GeneratedDir)
	if err != nil {
		return sum, err
	}
	if err := registerProjects(tc, opts.TopLevelDir, projectFiles, log); err != nil {
		return sum, err
	}
	if err := tc.Prepare(); err != nil {
		return sum, err
	}

	for _, h := range tc.Headers.DirtyHeaders() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := reparse(ctx, tc, h, opts.TopLevelDir, deps.Parser); err != nil {
			return sum, err
		}
		sum.Reparsed++
		log.Debug().Str("header", h.Path()).Msg("reparsed header")
	}

	if err := tc.Finish(); err != nil {
		return sum, err
	}

	files, err := newRegistrationFiles()
	if err != nil {
		return sum, err
	}
	for _, p := range tc.Projects.All() {
		if !p.NeedsRegeneration() {
			continue
		}
		reg := registration(tc, p)
		dir := reg.Dir(opts.TopLevelDir, opts.GeneratedDir)
		if opts.Mode == ModeClean {
			if err := files.Remove(dir, reg); err != nil {
				return sum, err
			}
		}
		written, err := files.Write(dir, reg)
		if err != nil {
			return sum, fmt.Errorf("project %s: %w", p.CaseName(), err)
		}
		log.Info().Str("project", p.CaseName()).Strs("because", p.DirtyHeaders).Msg("wrote enum registration files")
		_ = deps.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindProjectRegenerated, Subject: p.CaseName(), Data: written})
		sum.Regenerated = append(sum.Regenerated, p.CaseName())
		sum.Files = append(sum.Files, written...)
	}

	if err := store.Save(tc.Snapshot()); err != nil {
		return sum, err
	}

	tally(&sum, tc, deps.Telemetry)
	sum.Elapsed = time.Since(start)
	_ = deps.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindRunDone, Data: sum.Enums})
	return sum, nil
}

func loadSnapshot(store enumdb.TOMLStore, mode Mode) (*enumdb.Snapshot, error) {
	if mode == ModeClean {
		if err := store.Remove(); err != nil {
			return nil, err
		}
		return enumdb.Empty(), nil
	}
	return store.Load()
}

func registerProjects(tc *tracker.Context, top string, projectFiles []ProjectFile, log *runlog.Logger) error {
	for _, pf := range projectFiles {
		p, err := tc.Projects.Register(pf.Name)
		if err != nil {
			return err
		}
		if p == nil {
			log.Debug().Str("project", pf.Name).Msg("skipping project")
			continue
		}
		log.Info().Str("project", pf.Name).Int("headers", len(pf.Headers)).Msg("found project")
		for _, rel := range pf.Headers {
			info, err := os.Stat(filepath.Join(top, filepath.FromSlash(rel)))
			if err != nil {
				log.Warn().Str("project", pf.Name).Str("header", rel).Err(err).Msg("listed header is missing")
				continue
			}
			_, err = tc.Headers.Register(p.ID, &enumdb.HeaderFileRecord{
				Path:         rel,
				Project:      p.Name(),
				LastModified: info.ModTime().UTC().Truncate(time.Second),
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func reparse(ctx context.Context, tc *tracker.Context, h *tracker.HeaderFile, top string, parser HeaderParser) error {
	src, err := os.ReadFile(filepath.Join(top, filepath.FromSlash(h.Path())))
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	records, err := parser.ParseHeader(ctx, h.Path(), src)
	if err != nil {
		return err
	}
	for _, rec := range records {
		rec.HeaderPath = h.Path()
		rec.HeaderID = h.ID
		if _, err := tc.Enums.RegisterParsed(rec); err != nil {
			return err
		}
	}
	return nil
}

func registration(tc *tracker.Context, p *tracker.Project) Registration {
	own := tc.Enums.ProjectEnums(tc.Headers, p.ID)
	return Registration{
		CaseName: p.CaseName(),
		Name:     p.Name(),
		Enums:    own,
		Forward:  tc.Enums.ReferencedEnums(own),
	}
}

func tally(sum *Summary, tc *tracker.Context, em *telemetry.Emitter) {
	for _, p := range tc.Projects.All() {
		if _, ok := p.New(); ok {
			sum.Projects++
		}
	}
	for _, h := range tc.Headers.All() {
		if _, ok := h.New(); ok {
			sum.Headers++
		}
	}
	for _, e := range tc.Enums.All() {
		label := e.State.String()
		switch e.CreationState() {
		case tracker.CreationNew, tracker.CreationDeleted:
			label = e.CreationState().String()
		}
		sum.Enums[label]++
		if label != tracker.StateUnchanged.String() {
			_ = em.Emit(telemetry.Event{Kind: telemetry.KindEnumState, Subject: e.Record().FullName(), Data: label})
		}
	}
}
