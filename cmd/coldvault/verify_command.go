package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coldvault/internal/archiver"
	"coldvault/internal/services"
	"coldvault/internal/verification"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	var quick bool

	cmd := &cobra.Command{
		Use:   "verify <unit>",
		Short: "Check a unit's integrity layer by layer",
		Long: `Verify runs every integrity layer against the unit: container
structure, sha256, blake3, and the PAR2 recovery set. All layers run even
when an early one fails, so the report shows the full extent of any damage.

With --quick only the container structure and sha256 digest are checked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureArchiver()
			if err != nil {
				return err
			}
			report, err := a.Verify(cmd.Context(), archiver.VerifyRequest{
				Path:  args[0],
				Quick: quick,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderVerifyReport(report))
			if !report.Success {
				return services.Wrap(services.ErrIntegrity, services.StageVerification, "verify",
					"one or more integrity layers failed", nil)
			}
			fmt.Fprintf(out, "%s: all checks passed\n", report.Unit.Name)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quick, "quick", "q", false, "check container structure and sha256 only")
	return cmd
}

func renderVerifyReport(report *verification.Report) string {
	rows := make([][]string, 0, len(report.Layers))
	for _, layer := range report.Layers {
		rows = append(rows, []string{layer.Name, layer.Status.String(), layer.Detail})
	}
	return renderTable([]string{"Layer", "Status", "Detail"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft})
}
