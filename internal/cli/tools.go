package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/dispatch"
)

func init() {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the retrieval tools and their arguments",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}

	RootCmd.AddCommand(cmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	list := dispatch.New(nil, nil).Tools()
	if formatFlag != "text" {
		return printResult(list)
	}
	for _, t := range list {
		fmt.Printf("%s\n  %s\n", t.Name, t.Description)
		for _, p := range t.Params {
			req := ""
			if p.Required {
				req = " (required)"
			}
			def := ""
			if p.Default != nil {
				def = fmt.Sprintf(" [default %v]", p.Default)
			}
			fmt.Printf("    %-12s %-8s %s%s%s\n", p.Name, p.Type, p.Description, req, def)
		}
	}
	return nil
}
