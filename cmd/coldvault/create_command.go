package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"coldvault/internal/archiver"
	"coldvault/internal/profile"
)

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		name           string
		output         string
		force          bool
		skipRedundancy bool
		level          int
		threads        int
		windowMiB      int
		memoryMiB      int
	)

	cmd := &cobra.Command{
		Use:   "create <source>",
		Short: "Package a directory or archive into a verified cold storage unit",
		Long: `Create stages the source, packages it into a reproducible tar+zstd
container, writes dual hash sidecars and a metadata record, generates PAR2
recovery data, and verifies the finished unit end to end.

The source may be a directory or any supported archive format (see
'coldvault formats'). Compression parameters are derived from the source
size; flags override individual parameters.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureArchiver()
			if err != nil {
				return err
			}
			result, err := a.Create(cmd.Context(), archiver.CreateRequest{
				Source:         args[0],
				Name:           name,
				Destination:    output,
				Force:          force,
				SkipRedundancy: skipRedundancy,
				Overrides: profile.Overrides{
					Level:          level,
					Threads:        threads,
					WindowMiB:      windowMiB,
					MemoryLimitMiB: memoryMiB,
				},
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s\n", result.Unit.Root)
			fmt.Fprintf(out, "  %d files, %s → %s (level %d)\n",
				result.Record.Content.Files,
				humanize.IBytes(uint64(result.Record.Content.TotalBytes)),
				humanize.IBytes(uint64(result.Record.Integrity.CompressedBytes)),
				result.Record.Compression.Level)
			fmt.Fprintf(out, "  sha256 %s\n", result.Record.Integrity.SHA256)
			fmt.Fprintf(out, "  blake3 %s\n", result.Record.Integrity.BLAKE3)
			fmt.Fprintf(out, "  verified in %s\n", result.Elapsed.Round(timeRound))
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "unit name (default: derived from source)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default: configured output_dir)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing unit of the same name")
	cmd.Flags().BoolVar(&skipRedundancy, "no-redundancy", false, "skip PAR2 recovery data generation")
	cmd.Flags().IntVar(&level, "level", 0, "zstd compression level 1-19 (default: derived from size)")
	cmd.Flags().IntVar(&threads, "threads", 0, "compression threads (default: all cores)")
	cmd.Flags().IntVar(&windowMiB, "window", 0, "compression window in MiB, power of two (default: derived)")
	cmd.Flags().IntVar(&memoryMiB, "memory-limit", 0, "decompression memory ceiling in MiB (default: derived)")
	return cmd
}
