package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/alexfok/gate-controller/cmd/app/commands"
	"github.com/alexfok/gate-controller/internal/app"
	"github.com/alexfok/gate-controller/internal/config"
)

func getTokenCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "token",
			Usage: "Manage the registered token list",
			Commands: []*cli.Command{
				{
					Name:  "register",
					Usage: "Register a new BLE token",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:     "id",
							Aliases:  []string{"i"},
							Required: true,
							Usage:    "Token identifier (MAC address or iBeacon uuid:major:minor)",
						},
						&cli.StringFlag{
							Name:     "name",
							Aliases:  []string{"n"},
							Required: true,
							Usage:    "Human-readable token name",
						},
						&cli.BoolFlag{
							Name:    "enabled",
							Aliases: []string{"e"},
							Value:   true,
							Usage:   "Whether the token may trigger the gate",
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

						tokenUseCase, err := container.TokenUseCase()
						if err != nil {
							return err
						}

						return commands.RunRegisterToken(
							ctx,
							tokenUseCase,
							container.Logger(),
							commands.DefaultIO().Writer,
							cmd.String("id"),
							cmd.String("name"),
							cmd.Bool("enabled"),
							cmd.String("format"),
						)
					},
				},
				{
					Name:  "update",
					Usage: "Update a registered token's name or enabled flag",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:     "id",
							Aliases:  []string{"i"},
							Required: true,
							Usage:    "Token identifier",
						},
						&cli.StringFlag{
							Name:    "name",
							Aliases: []string{"n"},
							Usage:   "New token name (omit to keep current)",
						},
						&cli.BoolFlag{
							Name:    "enabled",
							Aliases: []string{"e"},
							Usage:   "New enabled flag (omit to keep current)",
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

						tokenUseCase, err := container.TokenUseCase()
						if err != nil {
							return err
						}

						var name *string
						if cmd.IsSet("name") {
							value := cmd.String("name")
							name = &value
						}

						var enabled *bool
						if cmd.IsSet("enabled") {
							value := cmd.Bool("enabled")
							enabled = &value
						}

						return commands.RunUpdateToken(
							ctx,
							tokenUseCase,
							container.Logger(),
							commands.DefaultIO().Writer,
							cmd.String("id"),
							name,
							enabled,
							cmd.String("format"),
						)
					},
				},
				{
					Name:  "unregister",
					Usage: "Remove a registered token",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:     "id",
							Aliases:  []string{"i"},
							Required: true,
							Usage:    "Token identifier",
						},
					},
					Action: func(ctx context.Context, cmd *cli.Command) error {
						cfg := config.Load()
						container := app.NewContainer(cfg)
						defer func() { _ = container.Shutdown(ctx) }()

						tokenUseCase, err := container.TokenUseCase()
						if err != nil {
							return err
						}

						return commands.RunUnregisterToken(
							ctx,
							tokenUseCase,
							container.Logger(),
							commands.DefaultIO().Writer,
							cmd.String("id"),
						)
					},
				},
				{
					Name:  "list",
					Usage: "List all registered tokens",
					Flags: []cli.Flag{
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

						tokenUseCase, err := container.TokenUseCase()
						if err != nil {
							return err
						}

						return commands.RunListTokens(
							ctx,
							tokenUseCase,
							commands.DefaultIO().Writer,
							cmd.String("format"),
						)
					},
				},
			},
		},
	}
}
