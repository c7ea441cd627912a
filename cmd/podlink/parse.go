package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/backkem/podlink/pkg/message"
	"github.com/backkem/podlink/pkg/packet"
)

// ParseCommand returns the parse command.
func ParseCommand() *cli.Command {
	return &cli.Command{
		Name:  "parse",
		Usage: "Decode hex radio captures",
		Subcommands: []*cli.Command{
			{
				Name:      "packet",
				Usage:     "Decode radio frames",
				ArgsUsage: "[hex...]",
				Action:    parseAction(describePacket),
			},
			{
				Name:      "message",
				Usage:     "Decode reassembled messages",
				ArgsUsage: "[hex...]",
				Action:    parseAction(describeMessage),
			},
		},
	}
}

// parseAction decodes each argument, or each stdin line when there are none.
func parseAction(describe func([]byte) (string, error)) cli.ActionFunc {
	return func(c *cli.Context) error {
		inputs := c.Args().Slice()
		if len(inputs) == 0 {
			lines, err := readLines(c.App.Reader)
			if err != nil {
				return err
			}
			inputs = lines
		}

		failed := 0
		for _, in := range inputs {
			out, err := describeHex(in, describe)
			if err != nil {
				failed++
				fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", in, err)
				continue
			}
			fmt.Fprintln(c.App.Writer, out)
		}
		if failed > 0 {
			return cli.Exit(fmt.Sprintf("%d of %d inputs failed to decode", failed, len(inputs)), 1)
		}
		return nil
	}
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func describeHex(s string, describe func([]byte) (string, error)) (string, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(strings.TrimPrefix(s, "0x"))
	data, err := hex.DecodeString(clean)
	if err != nil {
		return "", fmt.Errorf("invalid hex: %w", err)
	}
	return describe(data)
}

func describePacket(data []byte) (string, error) {
	p, err := packet.Decode(data)
	if err != nil {
		return "", err
	}
	out := p.String()
	if addr, ok := p.AckAddress(); ok {
		out += fmt.Sprintf(" ack:%08x", addr)
	}
	return out, nil
}

func describeMessage(data []byte) (string, error) {
	m, err := message.Decode(data)
	if errors.Is(err, message.ErrNeedsMoreData) {
		return "", fmt.Errorf("incomplete message (%d bytes)", len(data))
	}
	if err != nil {
		return "", err
	}
	return m.String(), nil
}
