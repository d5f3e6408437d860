package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chazu/modder/cil"
	"github.com/chazu/modder/query"
	"github.com/chazu/modder/runner"
)

func newQueryCommand() *cobra.Command {
	var (
		globs  []string
		search []string
	)

	cmd := &cobra.Command{
		Use:   "query <pattern> -a <glob>...",
		Short: "List the members a pattern selects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(globs) == 0 {
				return cmd.Help()
			}
			r := runner.New(search...)
			if err := r.LoadGlobs(".", globs...); err != nil {
				return err
			}
			res, err := query.Find(args[0], r.Modules, r.Cache)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			dim := color.New(color.Faint)
			for _, m := range res.Matches {
				kind, c := memberKind(m.Member)
				c.Fprintf(out, "%-8s ", kind)
				fmt.Fprint(out, m.Key)
				dim.Fprintf(out, "  [%s]\n", m.Module.Identity())
			}
			if res.Len() == 0 {
				color.New(color.FgYellow).Fprintln(out, "no matches")
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&globs, "assembly", "a", nil, "module image glob to load (repeatable)")
	cmd.Flags().StringArrayVarP(&search, "search", "s", nil, "directory searched for referenced modules (repeatable)")
	return cmd
}

func memberKind(m cil.Member) (string, *color.Color) {
	switch m.(type) {
	case *cil.Type:
		return "type", color.New(color.FgCyan, color.Bold)
	case *cil.Method:
		return "method", color.New(color.FgGreen)
	case *cil.Field:
		return "field", color.New(color.FgMagenta)
	case *cil.Property:
		return "property", color.New(color.FgBlue)
	case *cil.Module:
		return "module", color.New(color.FgYellow, color.Bold)
	}
	return "member", color.New(color.Reset)
}
