// podlink drives the pod radio transport against a simulated pod and
// decodes radio captures.
//
// Usage:
//
//	podlink simulate [options]
//	podlink parse packet|message [hex...]
//	podlink state show|set|reset --state <file>
//
// Example:
//
//	podlink simulate --count 20 --drop 0.1 --payload 80 --state /tmp/pod.state
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "podlink",
		Usage: "Pod radio transport tools",
		Commands: []*cli.Command{
			SimulateCommand(),
			ParseCommand(),
			StateCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
