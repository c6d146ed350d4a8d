package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/patch"
	"github.com/matzehuels/apkfetch/pkg/pipeline"
)

// buildCommand creates the build command.
func (c *CLI) buildCommand() *cobra.Command {
	var (
		only        []string
		onlyChanged bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Acquire, normalize and patch apps",
		Long: `Run the full pipeline for every configured app: resolve the patch
resources, download the package, merge split bundles into a single APK,
run the patch tool and record the build in the state store.

Apps are processed concurrently, at most max_parallel at a time. A failing
app does not stop the others; the command fails if any app failed.`,
		Example: `  apkfetch build
  apkfetch build --apps youtube,youtube_music --only-changed
  apkfetch build --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, apps, err := c.loadApps(only)
			if err != nil {
				return err
			}
			extras, err := cfg.Extras()
			if err != nil {
				return err
			}
			outDir, err := filepath.Abs(cfg.OutputDir)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidPath, err, "output dir %s", cfg.OutputDir)
			}

			run, err := c.openRun(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer run.Close()

			patcher := patch.New(run.Dir, run.Runner, run.Logger)
			patcher.OutDir = outDir
			patcher.DryRun = cfg.DryRun

			prog := newProgress(c.Logger)
			runner := pipeline.NewRunner(run, patcher, pipeline.Options{
				MaxParallel: cfg.MaxParallel,
				Extras:      extras,
				OnlyChanged: onlyChanged,
			})
			rep, err := runner.Build(cmd.Context(), apps)
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Built %d of %d apps", len(rep.Outputs), len(apps)))
			c.logCacheStats(run)

			printOutputs(c.Err, rep.Outputs)
			for _, name := range rep.Skipped {
				printInfo(c.Err, "%s unchanged, skipped", StyleHighlight.Render(name))
			}
			printFailures(c.Err, rep.Failures)
			printTimings(c.Err, rep.Slowest)
			if cfg.DryRun {
				printWarning(c.Err, "Dry run: nothing was downloaded or patched")
			}
			return rep.Err()
		},
	}

	cmd.Flags().StringSliceVar(&only, "apps", nil, "build only these apps")
	cmd.Flags().BoolVar(&onlyChanged, "only-changed", false, "skip apps whose bundles and package did not change")
	return cmd
}

// fetchCommand creates the fetch command.
func (c *CLI) fetchCommand() *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "fetch <app>",
		Short: "Download and normalize one app",
		Long: `Acquire the package of one app from its configured source and merge it
into a single APK in the work directory. The patch tool is not run and no
state is recorded.`,
		Example: `  apkfetch fetch youtube
  apkfetch fetch youtube --version 19.16.39`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			app, err := cfg.App(args[0])
			if err != nil {
				return err
			}
			if version != "" {
				app.Version = version
			}

			run, err := c.openRun(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer run.Close()

			rep, err := pipeline.NewRunner(run, nil, pipeline.Options{MaxParallel: 1}).Fetch(cmd.Context(), []*apk.App{app})
			if err != nil {
				return err
			}
			printFailures(c.Err, rep.Failures)
			for _, o := range rep.Outputs {
				fmt.Fprintln(c.Out, o.Path)
			}
			return rep.Err()
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "download this version instead of the configured one")
	return cmd
}
