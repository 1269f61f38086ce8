package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newInfoCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <unit>",
		Short: "Show a unit's metadata, sizes, and verification history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureArchiver()
			if err != nil {
				return err
			}
			info, err := a.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Name", info.Unit.Name},
				{"Location", info.Unit.Root},
				{"Container", humanize.IBytes(uint64(info.ContainerSize))},
				{"Total on disk", humanize.IBytes(uint64(info.TotalSize))},
				{"Recovery volumes", strconv.Itoa(info.VolumeCount)},
			}
			if record := info.Record; record != nil {
				ratio := "n/a"
				if record.Content.TotalBytes > 0 {
					ratio = fmt.Sprintf("%.1f%%",
						100*float64(record.Integrity.CompressedBytes)/float64(record.Content.TotalBytes))
				}
				rows = append(rows,
					[]string{"Created", record.Archive.CreatedAt.Local().Format(time.RFC1123)},
					[]string{"Created by", record.Archive.CreatedBy},
					[]string{"Files", strconv.Itoa(record.Content.Files)},
					[]string{"Directories", strconv.Itoa(record.Content.Directories)},
					[]string{"Original size", humanize.IBytes(uint64(record.Content.TotalBytes))},
					[]string{"Compression ratio", ratio},
					[]string{"Compression level", strconv.Itoa(record.Compression.Level)},
					[]string{"sha256", record.Integrity.SHA256},
					[]string{"blake3", record.Integrity.BLAKE3},
				)
				if record.Redundancy.Enabled {
					rows = append(rows, []string{"Redundancy",
						fmt.Sprintf("%d%% across %d volumes", record.Redundancy.Percent, record.Redundancy.VolumeCount)})
				} else {
					rows = append(rows, []string{"Redundancy", "disabled"})
				}
			} else {
				rows = append(rows, []string{"Metadata record", info.RecordState})
			}
			if last := info.LastVerification; last != nil {
				rows = append(rows, []string{"Last verified",
					fmt.Sprintf("%s (%s)", last.FinishedAt.Local().Format(time.RFC1123), last.Outcome)})
			} else {
				rows = append(rows, []string{"Last verified", "never"})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Field", "Value"}, rows,
				[]columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}
	return cmd
}
