package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/alexfok/gate-controller/cmd/app/commands"
	"github.com/alexfok/gate-controller/internal/app"
	"github.com/alexfok/gate-controller/internal/config"
)

func getActivityCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "activity",
			Usage: "Inspect the activity log",
			Commands: []*cli.Command{
				{
					Name:  "list",
					Usage: "List recent activity entries",
					Flags: []cli.Flag{
						&cli.IntFlag{
							Name:    "limit",
							Aliases: []string{"l"},
							Value:   0,
							Usage:   "Maximum number of entries to show (0 for all)",
						},
						&cli.StringFlag{
							Name:    "type",
							Aliases: []string{"t"},
							Usage:   "Filter by event type (e.g. gate_opened, token_detected)",
						},
						&cli.StringFlag{
							Name:    "format",
							Aliases: []string{"f"},
							Value:   "text",
							Usage:   "Output format: 'text' or 'json'",
						},
					},
					Action: func(ctx context.Context, cmd *cli.Command) error {
						cfg := config.Load()
						container := app.NewContainer(cfg)
						defer func() { _ = container.Shutdown(ctx) }()

						recorder, err := container.Recorder()
						if err != nil {
							return err
						}

						return commands.RunListActivity(
							recorder,
							commands.DefaultIO().Writer,
							int(cmd.Int("limit")),
							cmd.String("type"),
							cmd.String("format"),
						)
					},
				},
				{
					Name:  "clear",
					Usage: "Clear the activity log",
					Action: func(ctx context.Context, cmd *cli.Command) error {
						cfg := config.Load()
						container := app.NewContainer(cfg)
						defer func() { _ = container.Shutdown(ctx) }()

						recorder, err := container.Recorder()
						if err != nil {
							return err
						}

						return commands.RunClearActivity(recorder, commands.DefaultIO().Writer)
					},
				},
			},
		},
	}
}
