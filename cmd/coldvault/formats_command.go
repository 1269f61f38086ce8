package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"coldvault/internal/staging"
)

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the archive formats accepted as create sources",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			rows := make([][]string, 0)
			for _, info := range staging.SupportedFormats() {
				handler := "native"
				if !info.Native {
					handler = "7z"
				}
				rows = append(rows, []string{info.Name, strings.Join(info.Extensions, ", "), handler})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Format", "Extensions", "Handled by"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft}))
		},
	}
}
