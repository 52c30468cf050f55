package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report <suspicious_activity|critical_alert>",
	Short: "Trigger server-side report generation and delivery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lookback, _ := cmd.Flags().GetString("lookback")
		if err := apiClient().TriggerReport(args[0], lookback); err != nil {
			return err
		}
		fmt.Println("Report accepted for delivery")
		return nil
	},
}

func init() {
	reportCmd.Flags().String("lookback", "", "report window, e.g. 24h (default server-side)")
}
