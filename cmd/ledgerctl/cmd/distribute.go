package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// distributeCmd is what an external scheduler invokes once per period.
var distributeCmd = &cobra.Command{
	Use:   "distribute",
	Short: "Credit every due profit period and close matured positions",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		summary, err := svc.engine.DistributePendingProfits(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	rootCmd.AddCommand(distributeCmd)
}
