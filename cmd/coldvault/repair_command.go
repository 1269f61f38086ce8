package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coldvault/internal/archiver"
	"coldvault/internal/redundancy"
	"coldvault/internal/services"
)

func newRepairCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair <unit>",
		Short: "Reconstruct a damaged container from its recovery data",
		Long: `Repair assesses the unit's PAR2 recovery set and, when the damage is
within recovery capacity, reconstructs the container. The damaged
container is preserved alongside the repaired one with a .damaged
suffix, and the repaired unit is re-verified in full.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureArchiver()
			if err != nil {
				return err
			}
			result, err := a.Repair(cmd.Context(), archiver.RepairRequest{Path: args[0]})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch result.Outcome {
			case redundancy.RepairNotNeeded:
				fmt.Fprintln(out, "Unit is intact; no repair needed.")
			case redundancy.Repaired:
				fmt.Fprintln(out, "Container repaired and re-verified.")
				if result.Report != nil {
					fmt.Fprintln(out, renderVerifyReport(result.Report))
				}
			case redundancy.InsufficientRedundancy:
				return services.Wrap(services.ErrIntegrity, services.StageRepair, "repair",
					"damage exceeds recovery capacity; restore from another copy", nil)
			}
			return nil
		},
	}
	return cmd
}
