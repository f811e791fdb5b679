package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/ingest"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest [path-or-url]",
		Short: "Ingest a raw record batch",
		Long: "Ingest a batch of raw records from a local file, an http(s) URL, or stdin (\"-\").\n" +
			"Files may be a JSON array, JSONL or YAML; records may carry their own \"kind\".",
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().StringP("kind", "k", "", "Source kind: weather, market, crop, scheme or location")
	cmd.Flags().String("stdin-format", "json", "Format of stdin input: json, jsonl or yaml")

	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	stdinFormat, _ := cmd.Flags().GetString("stdin-format")

	a, done, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer done()

	var report ingest.Report
	if args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		objs, err := ingest.DecodeRecords(data, ingest.Format(stdinFormat))
		if err != nil {
			return fmt.Errorf("parse records: %w", err)
		}
		report = a.Pipeline.ProcessBatch(cmd.Context(), ingest.Records(model.SourceKind(kind), objs))
	} else {
		report, err = a.Pipeline.ProcessLocation(cmd.Context(), ingest.BatchRequest{
			SourceKind:      model.SourceKind(kind),
			RecordsLocation: args[0],
		})
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
	}
	return reportResult(report)
}

// reportResult prints a batch report; a failed run exits with status 2.
func reportResult(r ingest.Report) error {
	if err := printResult(r); err != nil {
		return err
	}
	if r.Status == ingest.StatusFailed {
		return &exitError{code: 2}
	}
	return nil
}
