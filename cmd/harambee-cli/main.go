package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli"

	appcli "harambee/internal/cli"
	"harambee/internal/log"
)

var stdin io.Reader = os.Stdin

func main() {
	appcli.LoadEnvFile()
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "harambee-cli"
	app.Usage = "parse and commit M-Pesa notifications, manage the ledger database"
	app.Writer = out
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "log-level", Value: "warn", Usage: "debug, info, warn or error", EnvVar: "CLI_LOG_LEVEL"},
	}
	app.Commands = []cli.Command{
		{
			Name:      "parse",
			Usage:     "print the payments found in pasted notifications",
			ArgsUsage: " ",
			Flags:     []cli.Flag{fileFlag},
			Action:    parseAction,
		},
		{
			Name:  "commit",
			Usage: "record every payment found in the notifications under one department",
			Flags: []cli.Flag{
				fileFlag,
				cli.StringFlag{Name: "department, d", Usage: "department the payments are recorded under"},
			},
			Action: commitAction,
		},
		{
			Name:   "migrate",
			Usage:  "apply the SQLite migrations",
			Action: migrateAction,
		},
		{
			Name:  "sync",
			Usage: "mirror pending ledger rows to the spreadsheet",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "dry-run", Usage: "print the rows instead of appending them"},
			},
			Action: syncAction,
		},
	}
	return app
}

var fileFlag = cli.StringFlag{Name: "file, f", Usage: "read notifications from `FILE` instead of stdin"}

// cliLogger writes to stderr so stdout carries only command output.
func cliLogger(c *cli.Context) *log.Logger {
	return log.New(log.Config{
		Level:     log.ParseLevel(c.GlobalString("log-level")),
		Component: log.ComponentApp,
		Output:    os.Stderr,
	})
}
