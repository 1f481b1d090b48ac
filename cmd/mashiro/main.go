package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mashiro/cli/internal/application"
	"mashiro/cli/internal/automation"
	"mashiro/cli/internal/command"
	"mashiro/cli/internal/config"
	"mashiro/cli/internal/db"
	"mashiro/cli/internal/global"
	"mashiro/cli/internal/handlers"
	"mashiro/cli/internal/localapi"
	"mashiro/cli/internal/logging"
)

var version = localapi.Version

var startApplication = application.StartApplication

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := command.BuildApp(command.Deps{
		LoadConfig:   config.LoadConfig,
		RunServe:     runServe,
		ListCommands: listCommands,
		RunMigrateUp: runMigrateUp,
		Version:      version,
	})
	if err := app.RunContext(rootCtx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mashiro: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger := logging.NewLogger(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Component: "mashiro"})
	app, err := startApplication(ctx, application.StartOptions{
		ConfigDir: cfg.ConfigDir,
		TaskStore: cfg.TaskStore,
		DBDSN:     cfg.DBDSN,
		LocalHost: cfg.LocalHost,
		LocalPort: cfg.LocalPort,
		QueueSize: cfg.QueueSize,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	logger.Info("mashiro starting", "version", version, "url", app.LocalAPIBaseURL(), "store", app.TaskStore())
	return app.Run(ctx)
}

func listCommands(_ context.Context, cfg config.Config, out io.Writer) error {
	dir, err := configDir(cfg)
	if err != nil {
		return err
	}
	assistantCfg, err := global.NewConfigStore(dir).LoadOrInit()
	if err != nil {
		return err
	}
	reg, err := handlers.BuildRegistry(automation.NewDesktop(nil, ""), assistantCfg)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"commands": reg.ListCommands(), "count": reg.Len()})
}

func runMigrateUp(_ context.Context, cfg config.Config) error {
	dir, err := configDir(cfg)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Component: "mashiro"})
	dsn := application.ResolveDSN(config.StoreSQLite, dir, cfg.DBDSN)
	gdb, err := db.OpenSQLiteWithMigrations(dsn)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", "dsn", dsn)
	return db.Close(gdb)
}

func configDir(cfg config.Config) (string, error) {
	if dir := strings.TrimSpace(cfg.ConfigDir); dir != "" {
		return dir, nil
	}
	return global.DefaultConfigDir()
}
