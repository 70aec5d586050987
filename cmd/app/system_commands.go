package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/alexfok/gate-controller/cmd/app/commands"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the controller: scan loops, watchdogs and the admin API",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
	}
}
