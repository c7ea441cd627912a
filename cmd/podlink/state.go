package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/backkem/podlink/pkg/session"
)

var stateFlag = &cli.StringFlag{
	Name:     "state",
	Aliases:  []string{"s"},
	Usage:    "Path of the session state file",
	Required: true,
}

// StateCommand returns the state command.
func StateCommand() *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Inspect or edit a persisted session state",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the stored counters",
				Flags:  []cli.Flag{stateFlag},
				Action: stateShowAction,
			},
			{
				Name:  "set",
				Usage: "Overwrite the stored counters",
				Flags: []cli.Flag{
					stateFlag,
					&cli.IntFlag{Name: "packet", Usage: "Packet number (0-31)", Required: true},
					&cli.IntFlag{Name: "message", Usage: "Message number (0-15)", Required: true},
				},
				Action: stateSetAction,
			},
			{
				Name:   "reset",
				Usage:  "Delete the stored counters",
				Flags:  []cli.Flag{stateFlag},
				Action: stateResetAction,
			},
		},
	}
}

func openStore(c *cli.Context) (*session.FileStore, error) {
	return session.NewFileStore(session.FileStoreConfig{Path: c.String("state")})
}

func stateShowAction(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	st, err := store.Load()
	switch {
	case errors.Is(err, session.ErrNotFound):
		return cli.Exit(fmt.Sprintf("no session state at %s", store.Path()), 1)
	case err != nil:
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintln(c.App.Writer, st)
	return nil
}

func stateSetAction(c *cli.Context) error {
	st, err := session.NewState(c.Int("packet"), c.Int("message"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	if err := store.Save(st); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, st)
	return nil
}

func stateResetAction(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	return store.Reset()
}
