package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chazu/modder/cil"
	"github.com/chazu/modder/manifest"
	"github.com/chazu/modder/runner"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run [dir]",
		Short: "Run the modder.toml manifest found in dir or its parents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			m, err := manifest.FindAndLoad(dir)
			if err != nil {
				return err
			}
			if m == nil {
				return fmt.Errorf("%w: no %s found in %s or its parents", cil.ErrConfiguration, manifest.FileName, dir)
			}

			r := runner.New()
			if err := r.RunManifest(m); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			color.New(color.FgGreen, color.Bold).Fprint(out, "done ")
			fmt.Fprintf(out, "%s: %d module(s) written to %s, %d hook slot(s)\n",
				m.Project.Name, len(r.Modules), m.OutputDir(), len(r.Report.Entries))
			return nil
		},
	}
}
