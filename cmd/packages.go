package cmd

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/papapumpkin/ccgtools/internal/config"
	"github.com/papapumpkin/ccgtools/internal/fsutil"
	"github.com/papapumpkin/ccgtools/internal/pkgmgr"
	"github.com/papapumpkin/ccgtools/internal/tui"
)

const packagesTool = "PackageManager"

var packagesCmd = &cobra.Command{
	Use:   "packages [CLEAN] [GENCONFIG]",
	Short: "Download, verify and install third-party packages",
	Long: `Downloads the packages listed in the package configuration, verifies their
hashes, unpacks them and copies the configured outputs into the source tree.
Outputs whose recorded hash still matches are left alone.

CLEAN discards the output manifest and rebuilds every output.
GENCONFIG also discards the recorded hashes and writes the configuration back
with fresh ones after the run; without a configuration it writes a sample.`,
	Args:               cobra.ArbitraryArgs,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE:               runPackages,
}

func init() {
	packagesCmd.Flags().Bool("tui", false, "show a live progress view")
	rootCmd.AddCommand(packagesCmd)
}

func runPackages(cmd *cobra.Command, args []string) error {
	useTUI, _ := cmd.Flags().GetBool("tui")

	t, err := startTool(packagesTool, packagesTelemetry)
	if err != nil {
		return err
	}
	defer t.close()

	if useTUI && !stderrIsTerminal() {
		t.printer.Warn("--tui needs a terminal, using plain output")
		useTUI = false
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	words, unknown := packageArgs(cmd.Flags(), commandTokens(cmd.Name(), os.Args[1:], args))
	flags := pkgmgr.ParseFlags(words)
	flags.Unknown = append(flags.Unknown, unknown...)
	req := packagesRequest(t.cfg, flags)
	t.printer.Banner("packages", req.ConfigFile)
	for _, tok := range req.Flags.Unknown {
		t.printer.Warn("ignoring unknown argument " + tok)
	}

	deps := pkgmgr.Deps{Log: t.log, Telemetry: t.telemetry}
	if !useTUI {
		deps.Observer = t.printer
	}
	s, err := pkgmgr.Open(ctx, req, deps)
	if errors.Is(err, pkgmgr.ErrSampleWritten) {
		t.printer.Info(err.Error())
		return nil
	}
	if err != nil {
		return t.fail(err)
	}
	defer s.Close()

	if err := runManager(ctx, s, useTUI, req.Options.PollInterval); err != nil {
		return t.fail(err)
	}
	sum, err := s.Finish()
	if err != nil {
		return t.fail(err)
	}
	t.printer.PackageSummary(sum)
	return nil
}

func runManager(ctx context.Context, s *pkgmgr.Session, useTUI bool, interval time.Duration) error {
	if useTUI {
		return tui.Run(ctx, tui.ManagerDriver{M: s.Manager}, interval, tui.WithOutput(os.Stderr))
	}
	return s.Run(ctx)
}

// commandTokens returns what followed name on the command line, or fallback
// when name is not there (e.g. when args were set programmatically).
func commandTokens(name string, argv, fallback []string) []string {
	for i, tok := range argv {
		if tok == name {
			return argv[i+1:]
		}
	}
	return fallback
}

// packageArgs splits raw command tokens into positional words and flags fs
// does not define. Values of known flags are skipped. Cobra parses with
// unknown flags whitelisted, which can drop the word after an unknown flag,
// so the words are taken from the raw tokens instead.
func packageArgs(fs *pflag.FlagSet, raw []string) (words, unknown []string) {
	for i := 0; i < len(raw); i++ {
		tok := raw[i]
		switch {
		case tok == "--":
			return append(words, raw[i+1:]...), unknown
		case len(tok) < 2 || tok[0] != '-':
			words = append(words, tok)
		default:
			f := lookupFlag(fs, tok)
			if f == nil {
				unknown = append(unknown, tok)
				continue
			}
			if f.NoOptDefVal == "" && !strings.Contains(tok, "=") {
				i++
			}
		}
	}
	return words, unknown
}

func lookupFlag(fs *pflag.FlagSet, tok string) *pflag.Flag {
	name, _, _ := strings.Cut(strings.TrimLeft(tok, "-"), "=")
	if strings.HasPrefix(tok, "--") {
		return fs.Lookup(name)
	}
	if len(name) != 1 {
		return nil
	}
	return fs.ShorthandLookup(name)
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// packagesRequest maps configuration onto a package manager run.
func packagesRequest(cfg config.Config, flags pkgmgr.Flags) pkgmgr.Request {
	p := cfg.Packages
	return pkgmgr.Request{
		Flags:        flags,
		ConfigFile:   dataPath(cfg, p.ConfigFile),
		ManifestFile: dataPath(cfg, p.ManifestFile),
		Options: pkgmgr.Options{
			DownloadDir:            p.DownloadDir,
			UnpackDir:              p.UnpackDir,
			MaxConcurrentDownloads: p.MaxConcurrentDownloads,
			Hash:                   pkgmgr.HashOptions{MaxWorkers: p.MaxHashWorkers, BatchBytes: p.HashBatchBytes},
			PollInterval:           p.PollInterval,
			Clean:                  fsutil.Retry{Attempts: p.CleanRetries, Backoff: p.CleanBackoff},
		},
	}
}

func packagesTelemetry(cfg config.Config) string { return cfg.Packages.TelemetryFile }
