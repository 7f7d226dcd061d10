package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/ccgtools/internal/reflector"
)

var enumsWatchCmd = &cobra.Command{
	Use:   "watch <top-level-dir> <R32|R64|D32|D64>",
	Short: "Regenerate enum registration code whenever headers or projects change",
	Long: `Runs the enum reflector once in NORMAL mode, then again after every burst
of header or project file changes under the top-level directory, until
interrupted. A failed pass is reported and the watch continues.`,
	Args: cobra.ExactArgs(2),
	RunE: runEnumsWatch,
}

func init() {
	enumsCmd.AddCommand(enumsWatchCmd)
}

func runEnumsWatch(cmd *cobra.Command, args []string) error {
	parsed, err := reflector.ParseArgs([]string{reflector.ModeNormal.String(), args[0], args[1]})
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
	t.printer.Banner("enums watch", opts.TopLevelDir+" "+opts.BuildSuffix)
	err = reflector.Watch(ctx, opts, reflector.Deps{Log: t.log, Telemetry: t.telemetry}, func(sum reflector.Summary, err error) {
		if err != nil {
			t.log.Fatal(err)
		}
		t.printer.WatchResult(sum, err)
	})
	if err != nil {
		return t.fail(err)
	}
	return nil
}
