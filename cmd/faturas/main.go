package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"faturas/internal/cli"
	"faturas/internal/config"
	"faturas/internal/log"
	ports "faturas/internal/sheets"
	"faturas/internal/storage"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "faturas",
		Short: "Invoice reporting dashboard",
		Long: `faturas loads invoice spreadsheets, filters and aggregates them, and serves
an interactive dashboard with charts, a detail table and CSV export.

Configuration is read from the environment and an optional .env file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			cli.LoadEnvFile()
		},
	}
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	root.AddCommand(serveCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(reloadCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// env is what every subcommand needs before doing its work.
type env struct {
	cfg     *config.Config
	logger  *log.Logger
	source  ports.TableSource
	history *storage.SQLiteRepository
}

// configure loads the configuration and builds the logger, honouring the
// --log-level flag.
func configure(cmd *cobra.Command) (*config.Config, *log.Logger, error) {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, cli.SetupLogger(cfg.LogLevel), nil
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, logger, err := configure(cmd)
	if err != nil {
		return nil, err
	}

	src, err := cli.BuildSource(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	history, err := cli.OpenHistory(logger, cfg)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, source: src, history: history}, nil
}

func (e *env) Close() {
	if e.history != nil {
		if err := e.history.Close(); err != nil {
			e.logger.Warn("Failed to close history database", log.FieldError, err)
		}
	}
}
