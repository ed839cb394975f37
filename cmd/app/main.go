package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/keepmd/internal"
	pkgconfig "github.com/starford/keepmd/pkg/config"
)

var version = "dev"

type entryFunc func(context.Context, ...internal.Option) error

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOrDefault(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// action loads the config and hands it to run with the command's options.
func action(run entryFunc, extra func(*cli.Command) []internal.Option) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithVersion(version),
		}
		if extra != nil {
			opts = append(opts, extra(cmd)...)
		}

		if err := run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func stashOption(cmd *cli.Command) []internal.Option {
	return []internal.Option{internal.WithStash(cmd.Bool("stash"))}
}

func main() {
	cmd := &cli.Command{
		Name:    "keepmd",
		Usage:   "Convert a Google Keep export into Markdown notes with a tag table of contents",
		Version: version,
		Action:  action(internal.Run, stashOption),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:  "stash",
				Usage: "Push converted notes to CouchDB even when stash.enabled is false",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "convert",
				Usage:  "Convert the export folder once (default)",
				Action: action(internal.Run, stashOption),
			},
			{
				Name:   "watch",
				Usage:  "Convert, then re-convert whenever the export folder changes",
				Action: action(internal.Watch, stashOption),
			},
			{
				Name:  "serve",
				Usage: "Serve the converted notes and the tag TOC over HTTP",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Also re-convert on export changes and announce runs over SSE",
					},
				},
				Action: action(internal.Serve, func(cmd *cli.Command) []internal.Option {
					return []internal.Option{internal.WithWatch(cmd.Bool("watch"))}
				}),
			},
			{
				Name:   "mcp",
				Usage:  "Serve the converted notes to MCP clients over stdio",
				Action: action(internal.ServeMCP, nil),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
