package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/apkfetch/pkg/pipeline"
)

// checkCommand creates the check command.
func (c *CLI) checkCommand() *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report which apps need rebuilding",
		Long: `Resolve the patch tool and patch bundles of every configured app and
compare them with the last recorded build.

Apps that need rebuilding are printed to stdout as a comma-separated list;
nothing is printed when everything is up to date. The grouped summary goes
to stderr. The command fails if any app could not be checked.`,
		Example: `  apkfetch check
  APPS=$(apkfetch check --apps youtube,reddit)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, apps, err := c.loadApps(only)
			if err != nil {
				return err
			}
			run, err := c.openRun(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer run.Close()

			prog := newProgress(c.Logger)
			rep, err := pipeline.NewRunner(run, nil, pipeline.Options{MaxParallel: cfg.MaxParallel}).Check(cmd.Context(), apps)
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Checked %d apps", len(apps)))
			c.logCacheStats(run)

			printDecisions(c.Err, rep.Decisions)
			printFailures(c.Err, rep.Failures)
			if names := rep.Apps(); len(names) > 0 {
				fmt.Fprintln(c.Out, strings.Join(names, ","))
			}
			return rep.Err()
		},
	}

	cmd.Flags().StringSliceVar(&only, "apps", nil, "check only these apps")
	return cmd
}
