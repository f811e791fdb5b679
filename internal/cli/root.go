// Package cli implements the kisan-mitra CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Kissan-Mitra/Kissan-Mitra/internal/app"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/config"
	"github.com/Kissan-Mitra/Kissan-Mitra/internal/logger"
)

// Version is set at build time.
var Version = "dev"

var (
	dbPath     string
	configPath string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "kisan-mitra",
	Short: "Agricultural knowledge store and retrieval tools",
	Long: "Keeps weather, market price, crop and scheme knowledge fresh in a local store and " +
		"answers forecast, crop recommendation, price trend and scheme queries for a conversational agent.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// a missing .env is fine
		_ = godotenv.Load()
		switch formatFlag {
		case "json", "yaml", "text":
			return nil
		}
		return fmt.Errorf("unknown --format %q: want json, yaml or text", formatFlag)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path for every store (default: $KISAN_DB or ~/.kisan-mitra/knowledge.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file (default: $KISAN_CONFIG)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json, yaml or text")
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("KISAN_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.SetDBPath(dbPath)
	}
	return cfg, nil
}

// openApp loads configuration and opens the stores. Logs go to stderr so
// stdout stays machine readable. The returned func closes the stores and
// flushes the logger.
func openApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, fmt.Errorf("open stores: %w", err)
	}
	return a, func() {
		a.Close()
		log.Sync()
	}, nil
}

// printResult writes v to stdout in the --format encoding. text and yaml
// both render YAML keyed by the JSON field names.
func printResult(v any) error {
	return writeResult(os.Stdout, formatFlag, v)
}

func writeResult(w io.Writer, format string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if format == "json" {
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// exitError ends a command with a specific exit code once its deferred
// cleanup has run.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := RootCmd.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}
