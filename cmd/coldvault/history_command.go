package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		archive string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the operation journal, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			store := ctx.ensureJournal()
			if store == nil {
				return fmt.Errorf("operation journal is unavailable")
			}
			entries, err := store.List(cmd.Context(), archive, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No recorded operations.")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					entry.FinishedAt.Local().Format(time.DateTime),
					entry.Operation,
					entry.Archive,
					entry.Outcome,
					entry.Duration().Round(timeRound).String(),
					entry.Detail,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Finished", "Operation", "Archive", "Outcome", "Took", "Detail"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&archive, "archive", "a", "", "only show operations for this archive")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum entries to show")
	return cmd
}
