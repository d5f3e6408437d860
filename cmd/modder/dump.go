package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chazu/modder/cil"
	"github.com/chazu/modder/image"
	"github.com/chazu/modder/query"
)

func newDumpCommand() *cobra.Command {
	var search []string

	cmd := &cobra.Command{
		Use:   "dump <image> [pattern]",
		Short: "Disassemble the methods of a module image",
		Long: `Print a listing of every method body in the image, or of the
methods selected by pattern. The listing is a debugging aid.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs := append([]string{filepath.Dir(args[0])}, search...)
			m, err := image.Load(args[0], image.NewDirResolver(dirs...))
			if err != nil {
				return err
			}

			var methods []*cil.Method
			if len(args) == 2 {
				res, err := query.Find(args[1], []*cil.Module{m}, nil)
				if err != nil {
					return err
				}
				methods = res.Methods()
			} else {
				m.ForEachMethod(func(mth *cil.Method) {
					methods = append(methods, mth)
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "; module %s (mvid %s)\n", m.Identity(), m.MVID)
			for _, mth := range methods {
				fmt.Fprintln(out)
				fmt.Fprint(out, cil.Disassemble(mth))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&search, "search", "s", nil, "directory searched for referenced modules (repeatable)")
	return cmd
}
