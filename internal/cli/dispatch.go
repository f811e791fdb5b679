package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "dispatch [tool] [key=value...]",
		Short: "Call a retrieval tool",
		Long: "Call a retrieval tool the way the conversational agent does. Arguments are given as\n" +
			"key=value pairs or as a JSON object with --args.",
		Example: "  kisan-mitra dispatch get_market_price_trend crop=gehu\n" +
			"  kisan-mitra dispatch search_government_schemes --args '{\"query\":\"drip irrigation\",\"state\":\"Maharashtra\"}'",
		Args: cobra.MinimumNArgs(1),
		RunE: runDispatch,
	}

	cmd.Flags().StringP("args", "a", "", "Arguments as a JSON object")

	RootCmd.AddCommand(cmd)
}

func runDispatch(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("args")
	arguments, err := parseToolArgs(raw, args[1:])
	if err != nil {
		return fmt.Errorf("parse arguments: %w", err)
	}

	a, done, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer done()

	return printResult(a.Dispatcher.Dispatch(cmd.Context(), args[0], arguments))
}

// parseToolArgs merges a JSON object with key=value pairs; pairs win.
func parseToolArgs(raw string, pairs []string) (map[string]any, error) {
	out := map[string]any{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("--args: %w", err)
		}
	}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}
