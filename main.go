package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/IvanBaradan/Tatargram/internal/config"
)

func main() {
	app := &cli.App{
		Name:  "tatargram",
		Usage: "Telegram account bridge for the CRM",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultPath,
				EnvVars: []string{"CONFIG_PATH"},
				Usage:   "path to the YAML configuration file",
			},
		},
		Action:   serve,
		Commands: commands(),
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
