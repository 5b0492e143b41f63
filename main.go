package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"tomes/cmd"
	"tomes/pkg/config"
	tomeslog "tomes/pkg/log"
)

func main() {
	app := &cli.Command{
		Name:  "tomes",
		Usage: "Search Open Library and keep a shelf of saved books",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: getDefaultConfigPathOrExit(),
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if c.Bool("debug") {
				tomeslog.SetGlobalDebug(true)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.ShellCommand(),
			cmd.SearchCommand(),
			cmd.FieldsCommand(),
			cmd.ShelfCommand(),
			cmd.ServeCommand(),
			cmd.WatchCommand(),
			cmd.VersionCommand(),
		},
		// Bare tomes drops into the interactive search loop
		Action: func(ctx context.Context, c *cli.Command) error {
			return cmd.RunShell(ctx, c.String("config"))
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func getDefaultConfigPathOrExit() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		log.Fatalf("Failed to get default config path: %v", err)
	}
	return path
}
