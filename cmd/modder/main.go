// modder patches module images: it injects hook slots into selected methods
// and applies the structural passes listed in a modder.toml manifest.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var verbosity int

	root := &cobra.Command{
		Use:   "modder",
		Short: "Inject mod hooks into module images",
		Long: `modder rewrites module images so that mods can subscribe to
before and after events of selected methods, without editing the
original code.

Methods are selected with patterns such as
  [Game]Game.Player.Update*$berca
where the optional [Module] prefix filters modules, '*' matches any
run of characters, '&&' joins several patterns and the letters after
'$' pick the hooks to generate.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			commonlog.Configure(verbosity, nil)
		},
	}
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log verbosity (repeat for more)")

	root.AddCommand(newPatchCommand())
	root.AddCommand(newQueryCommand())
	root.AddCommand(newDumpCommand())
	root.AddCommand(newRunCommand())
	return root
}
