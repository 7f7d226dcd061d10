package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/ccgtools/internal/config"
	"github.com/papapumpkin/ccgtools/internal/reflector"
)

const enumsTool = "EnumReflector"

var enumsCmd = &cobra.Command{
	Use:   "enums <NORMAL|CLEAN> <top-level-dir> <R32|R64|D32|D64>",
	Short: "Regenerate enum registration code",
	Long: `Scans the Visual Studio projects under the top-level directory, reparses
headers whose modification time changed, binds enum values across extension
chains and rewrites the registration files of projects whose enums changed.

NORMAL reuses the enum database from the previous run; CLEAN ignores it and
regenerates everything.`,
	Args: cobra.ArbitraryArgs,
	RunE: runEnums,
}

func init() {
	rootCmd.AddCommand(enumsCmd)
}

func runEnums(cmd *cobra.Command, args []string) error {
	parsed, err := reflector.ParseArgs(args)
	if err != nil {
		return err
	}

	t, err := startTool(enumsTool, enumsTelemetry)
	if err != nil {
		return err
	}
	defer t.close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	opts := enumsOptions(t.cfg, parsed)
	t.printer.Banner("enums", opts.Mode.String()+" "+opts.TopLevelDir+" "+opts.BuildSuffix)
	sum, err := reflector.Run(ctx, opts, reflector.Deps{Log: t.log, Telemetry: t.telemetry})
	if err != nil {
		return t.fail(err)
	}
	t.printer.EnumSummary(sum)
	return nil
}

// enumsOptions completes the parsed command line with configured paths.
func enumsOptions(cfg config.Config, parsed reflector.Options) reflector.Options {
	parsed.DatabasePath = dataPath(cfg, cfg.Enums.DatabaseFile)
	parsed.SkippedProjects = cfg.Enums.SkippedProjects
	parsed.ProjectGlob = cfg.Enums.ProjectGlob
	parsed.GeneratedDir = cfg.Enums.GeneratedDir
	return parsed
}

func enumsTelemetry(cfg config.Config) string { return cfg.Enums.TelemetryFile }
