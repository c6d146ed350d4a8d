package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/apkfetch/pkg/integrations"
	"github.com/matzehuels/apkfetch/pkg/source"
)

// sourcesCommand creates the sources command.
func (c *CLI) sourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources [url]",
		Short: "List acquisition strategies, or show which one handles a URL",
		Long: `Without arguments, list the acquisition strategies in the order they are
tried. With a source URL, print the name of the strategy that handles it.`,
		Example: `  apkfetch sources
  apkfetch sources https://www.apkmirror.com/apk/google-inc/youtube/`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := source.NewResolver(source.Env{Options: integrations.Options{Logger: c.Logger}})
			if len(args) == 0 {
				for _, name := range resolver.Names() {
					fmt.Fprintln(c.Out, name)
				}
				return nil
			}
			strategy, err := resolver.Resolve(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.Out, strategy.Name())
			return nil
		},
	}
}
