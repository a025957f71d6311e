package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/flowdesk/internal/app"
	"github.com/markdave123-py/flowdesk/internal/config"
	db "github.com/markdave123-py/flowdesk/internal/core/database"
	"github.com/markdave123-py/flowdesk/internal/logger"
)

func main() {
	// Handle SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "flowdesk",
		Short:         "Workflow knowledge-base ingestion service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the ingestion workers",
			RunE:  runServe,
		},
		newMigrateCmd(),
		&cobra.Command{
			Use:   "process <document-id>",
			Short: "Ingest one document in the foreground",
			Args:  cobra.ExactArgs(1),
			RunE:  runProcess,
		},
	)
	return root
}

// loadConfig reads configuration and installs the JSON logger as default.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		return nil, err
	}
	slog.SetDefault(logger.New(os.Stdout, cfg.LogLevel))
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	application, err := app.NewApp(cmd.Context(), cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		return err
	}
	defer application.Close()

	slog.Info("flowdesk is running", "port", cfg.Port, "trigger_mode", cfg.TriggerMode)
	if err := application.Serve(cmd.Context()); err != nil {
		slog.Error("server stopped with error", "error", err)
		return err
	}
	slog.Info("shut down cleanly")
	return nil
}

func newMigrateCmd() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or with --down, revert) the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sqlDB, err := db.OpenDB(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				slog.Error("connect database", "error", err)
				return err
			}
			defer sqlDB.Close()

			if down {
				err = db.Rollback(sqlDB)
			} else {
				err = db.EnsureBootstrapped(sqlDB)
			}
			if err != nil {
				slog.Error("migration failed", "down", down, "error", err)
				return err
			}

			version, dirty, err := db.SchemaVersion(sqlDB)
			if err != nil {
				return err
			}
			slog.Info("schema migrated", "version", version, "dirty", dirty)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "revert every migration")
	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	application, err := app.NewApp(cmd.Context(), cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		return err
	}
	defer application.Close()

	res, err := application.ProcessOnce(cmd.Context(), args[0])
	if err != nil {
		slog.Error("process failed", "document_id", args[0], "error", err)
		return err
	}

	out, _ := json.Marshal(res)
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	if !res.Success {
		return fmt.Errorf("processing failed: %s", res.Error)
	}
	return nil
}
