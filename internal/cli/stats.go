package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		RunE:  runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, done, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer done()

	stats, err := a.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	return printResult(stats)
}
