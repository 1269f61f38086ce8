package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var namesOnly bool

	cmd := &cobra.Command{
		Use:   "list <unit>",
		Short: "List a unit's contents without extracting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureArchiver()
			if err != nil {
				return err
			}
			unit, entries, err := a.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if namesOnly {
				for _, entry := range entries {
					fmt.Fprintln(out, entry.Path)
				}
				return nil
			}

			var files int
			var total int64
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				kind := "file"
				size := humanize.IBytes(uint64(entry.Size))
				switch {
				case entry.IsDir:
					kind, size = "dir", ""
				case entry.LinkTarget != "":
					kind, size = "link", "-> "+entry.LinkTarget
				default:
					files++
					total += entry.Size
				}
				rows = append(rows, []string{entry.Path, kind, size})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Entry", "Type", "Size"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight}))
			fmt.Fprintf(out, "%s: %d files, %s uncompressed\n",
				unit.Name, files, humanize.IBytes(uint64(total)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&namesOnly, "names-only", false, "print entry paths only, one per line")
	return cmd
}
