package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Pull the daily weather and market feeds",
		Long:  "Fetch the configured weather and market feeds (with retries) and ingest the snapshots.",
		Args:  cobra.NoArgs,
		RunE:  runRefresh,
	}

	RootCmd.AddCommand(cmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, done, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer done()

	return reportResult(a.Pipeline.ProcessDailyData(cmd.Context()))
}
