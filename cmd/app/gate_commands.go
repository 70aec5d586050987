package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/alexfok/gate-controller/cmd/app/commands"
	"github.com/alexfok/gate-controller/internal/app"
	"github.com/alexfok/gate-controller/internal/config"
)

func getGateCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "gate",
			Usage: "Operate the gate through the remote controller",
			Commands: []*cli.Command{
				{
					Name:  "open",
					Usage: "Open the gate",
					Action: func(ctx context.Context, cmd *cli.Command) error {
						cfg := config.Load()
						container := app.NewContainer(cfg)
						defer func() { _ = container.Shutdown(ctx) }()

						gate, err := container.SessionGate()
						if err != nil {
							return err
						}

						act, err := container.Actuator()
						if err != nil {
							return err
						}

						return commands.RunGateOpen(
							ctx,
							gate,
							act,
							container.Logger(),
							commands.DefaultIO().Writer,
						)
					},
				},
				{
					Name:  "close",
					Usage: "Close the gate",
					Action: func(ctx context.Context, cmd *cli.Command) error {
						cfg := config.Load()
						container := app.NewContainer(cfg)
						defer func() { _ = container.Shutdown(ctx) }()

						gate, err := container.SessionGate()
						if err != nil {
							return err
						}

						act, err := container.Actuator()
						if err != nil {
							return err
						}

						return commands.RunGateClose(
							ctx,
							gate,
							act,
							container.Logger(),
							commands.DefaultIO().Writer,
						)
					},
				},
				{
					Name:  "status",
					Usage: "Report the gate and controller status",
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

						gate, err := container.SessionGate()
						if err != nil {
							return err
						}

						act, err := container.Actuator()
						if err != nil {
							return err
						}

						return commands.RunGateStatus(
							ctx,
							gate,
							act,
							commands.DefaultIO().Writer,
							cmd.String("format"),
						)
					},
				},
			},
		},
		{
			Name:  "scan",
			Usage: "Run a one-off BLE scan and list nearby devices",
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

				scanner, err := container.Scanner()
				if err != nil {
					return err
				}

				store, err := container.Store()
				if err != nil {
					return err
				}

				return commands.RunScan(
					ctx,
					scanner,
					store.GateSettings().ScanDuration(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
	}
}
