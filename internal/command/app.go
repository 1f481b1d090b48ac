package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"mashiro/cli/internal/config"
)

type Deps struct {
	LoadConfig   func() config.Config
	RunServe     func(context.Context, config.Config) error
	ListCommands func(context.Context, config.Config, io.Writer) error
	RunMigrateUp func(context.Context, config.Config) error
	Version      string
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Usage: "listen host (overrides MASHIRO_LOCAL_HOST)"},
		&cli.IntFlag{Name: "port", Usage: "listen port (overrides MASHIRO_LOCAL_PORT)"},
		&cli.StringFlag{Name: "store", Usage: "task store: memory or sqlite (overrides MASHIRO_TASK_STORE)"},
	}
}

func BuildApp(deps Deps) *cli.App {
	version := strings.TrimSpace(deps.Version)
	if version == "" {
		version = "dev"
	}
	return &cli.App{
		Name:    "mashiro",
		Usage:   "personal assistant command server",
		Version: version,
		Flags:   serveFlags(),
		Action: func(ctx *cli.Context) error {
			return runServe(ctx, deps)
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP server",
				Flags:  serveFlags(),
				Action: func(ctx *cli.Context) error { return runServe(ctx, deps) },
			},
			{
				Name:  "commands",
				Usage: "print the registered commands as JSON",
				Action: func(ctx *cli.Context) error {
					if deps.ListCommands == nil {
						return errors.New("command listing is not configured")
					}
					return deps.ListCommands(ctx.Context, loadConfig(deps), ctx.App.Writer)
				},
			},
			{
				Name:  "migrate",
				Usage: "run database migration",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply pending migrations",
						Action: func(ctx *cli.Context) error {
							if deps.RunMigrateUp == nil {
								return errors.New("migrate up runner is not configured")
							}
							return deps.RunMigrateUp(ctx.Context, loadConfig(deps))
						},
					},
				},
			},
		},
	}
}

func loadConfig(deps Deps) config.Config {
	if deps.LoadConfig != nil {
		return deps.LoadConfig()
	}
	return config.LoadConfig()
}

func runServe(ctx *cli.Context, deps Deps) error {
	if deps.RunServe == nil {
		return errors.New("serve runner is not configured")
	}
	cfg, err := applyServeFlags(ctx, loadConfig(deps))
	if err != nil {
		return err
	}
	return deps.RunServe(ctx.Context, cfg)
}

func applyServeFlags(ctx *cli.Context, cfg config.Config) (config.Config, error) {
	if ctx.IsSet("host") {
		cfg.LocalHost = strings.TrimSpace(ctx.String("host"))
	}
	if ctx.IsSet("port") {
		port := ctx.Int("port")
		if port <= 0 || port > 65535 {
			return cfg, fmt.Errorf("invalid port: %d", port)
		}
		cfg.LocalPort = port
	}
	if ctx.IsSet("store") {
		store := strings.ToLower(strings.TrimSpace(ctx.String("store")))
		if store != config.StoreMemory && store != config.StoreSQLite {
			return cfg, fmt.Errorf("unsupported store: %s", store)
		}
		cfg.TaskStore = store
	}
	return cfg, nil
}
