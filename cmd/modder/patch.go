package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chazu/modder/runner"
)

func newPatchCommand() *cobra.Command {
	var (
		patterns []string
		globs    []string
		search   []string
		outDir   string
		report   string
	)

	cmd := &cobra.Command{
		Use:   "patch -m <pattern>... -a <glob>...",
		Short: "Hook the methods selected by patterns",
		Long: `Load the module images matched by the -a globs, hook every method
selected by the -m patterns and write the patched images to the output
directory. Both -m and -a are required; without them the command only
prints this help.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(patterns) == 0 || len(globs) == 0 {
				return cmd.Help()
			}

			r := runner.New(search...)
			if err := r.LoadGlobs(".", globs...); err != nil {
				return err
			}
			hooked := 0
			for _, p := range patterns {
				h, err := r.ApplyPattern(p)
				if err != nil {
					return err
				}
				hooked += len(h)
			}
			if err := r.Verify(); err != nil {
				return err
			}
			paths, err := r.Save(outDir)
			if err != nil {
				return err
			}
			if report != "" {
				if err := r.Report.WriteSQLite(report); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			ok := color.New(color.FgGreen, color.Bold)
			for _, path := range paths {
				size := ""
				if info, err := os.Stat(path); err == nil {
					size = humanize.Bytes(uint64(info.Size()))
				}
				ok.Fprint(out, "wrote ")
				fmt.Fprintf(out, "%s (%s)\n", path, size)
			}
			fmt.Fprintf(out, "hooked %s method(s), %s slot(s)\n",
				humanize.Comma(int64(hooked)), humanize.Comma(int64(len(r.Report.Entries))))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&patterns, "match", "m", nil, "method pattern to hook (repeatable)")
	cmd.Flags().StringArrayVarP(&globs, "assembly", "a", nil, "module image glob to load (repeatable)")
	cmd.Flags().StringArrayVarP(&search, "search", "s", nil, "directory searched for referenced modules (repeatable)")
	cmd.Flags().StringVarP(&outDir, "output", "o", "out", "directory the patched images are written to")
	cmd.Flags().StringVar(&report, "report", "", "write the generated hook slots to this SQLite file")
	return cmd
}
