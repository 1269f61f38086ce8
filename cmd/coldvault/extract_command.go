package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"coldvault/internal/archiver"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var (
		dest         string
		force        bool
		skipVerify   bool
		windowsNames bool
	)

	cmd := &cobra.Command{
		Use:   "extract <unit>",
		Short: "Restore a unit's contents to a directory",
		Long: `Extract runs a quick integrity check and then unpacks the unit's
container into the destination directory. The destination must be empty
unless --force is given.

--windows-names applies the same filename sanitization used on Windows
(reserved device names, invalid characters, length limits) on any
platform, for staging content bound for a Windows filesystem.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureArchiver()
			if err != nil {
				return err
			}
			report, err := a.Extract(cmd.Context(), archiver.ExtractRequest{
				Path:               args[0],
				DestDir:            dest,
				Force:              force,
				SkipVerify:         skipVerify,
				ApplyRenameMapping: windowsNames,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Extracted %d files (%s) to %s\n",
				report.Files, humanize.IBytes(uint64(report.Bytes)), dest)
			if len(report.Renamed) > 0 {
				fmt.Fprintf(out, "%d entries renamed for filesystem compatibility:\n", len(report.Renamed))
				originals := make([]string, 0, len(report.Renamed))
				for original := range report.Renamed {
					originals = append(originals, original)
				}
				sort.Strings(originals)
				for _, original := range originals {
					fmt.Fprintf(out, "  %s -> %s\n", original, report.Renamed[original])
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dest, "dest", "o", ".", "destination directory")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "extract into a non-empty destination")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "skip the integrity check before extracting")
	cmd.Flags().BoolVar(&windowsNames, "windows-names", false, "apply Windows filename sanitization")
	return cmd
}
