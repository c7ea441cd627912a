package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/backkem/podlink/pkg/exchange"
	"github.com/backkem/podlink/pkg/message"
	"github.com/backkem/podlink/pkg/messagelog"
	"github.com/backkem/podlink/pkg/podsim"
	"github.com/backkem/podlink/pkg/session"
	"github.com/backkem/podlink/pkg/transport"
)

// SimulateCommand returns the simulate command.
func SimulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "Run requests against a simulated pod over an impaired link",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to podlink.yaml"},
			&cli.StringFlag{Name: "address", Usage: "Pod address in hex"},
			&cli.StringFlag{Name: "state", Aliases: []string{"s"}, Usage: "Persist session state to this file"},
			&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error"},
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 1, Usage: "Number of requests"},
			&cli.IntFlag{Name: "payload", Usage: "Send an echo block of this many bytes (at most 255) instead of GetStatus"},
			&cli.Float64Flag{Name: "drop", Usage: "Frame drop probability"},
			&cli.Float64Flag{Name: "duplicate", Usage: "Frame duplicate probability"},
			&cli.Int64Flag{Name: "seed", Usage: "Impairment seed (0 picks one)"},
			&cli.DurationFlag{Name: "retransmit", Usage: "Pod retransmit interval (0 disables)"},
			&cli.StringFlag{Name: "message-log", Usage: "Write the message log as YAML to this file"},
			&cli.BoolFlag{Name: "show-log", Usage: "Print the message log when done"},
		},
		Action: simulateAction,
	}
}

// simulateConfig merges the config file and the flags that were set.
func simulateConfig(c *cli.Context) (*Config, error) {
	cfg := &Config{}
	if path := c.String("config"); path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if c.IsSet("address") {
		cfg.Address = c.String("address")
	}
	if c.IsSet("state") {
		cfg.StatePath = c.String("state")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("drop") {
		cfg.Link.DropRate = c.Float64("drop")
	}
	if c.IsSet("duplicate") {
		cfg.Link.DuplicateRate = c.Float64("duplicate")
	}
	if c.IsSet("seed") {
		cfg.Link.Seed = c.Int64("seed")
	}
	if c.IsSet("retransmit") {
		cfg.Pod.RetransmitInterval = Duration{c.Duration("retransmit")}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadState opens the configured store and reads its counters. A missing
// or unreadable record starts from zero.
func loadState(cfg *Config, factory *zapLoggerFactory) (session.Store, session.State, error) {
	if cfg.StatePath == "" {
		return session.NewMemoryStore(), session.State{}, nil
	}
	store, err := session.NewFileStore(session.FileStoreConfig{Path: cfg.StatePath, LoggerFactory: factory})
	if err != nil {
		return nil, session.State{}, err
	}
	st, err := store.Load()
	switch {
	case err == nil:
		return store, st, nil
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrCorrupt):
		factory.NewLogger("simulate").Warnf("starting from zero counters: %v", err)
		return store, session.State{}, nil
	default:
		return nil, session.State{}, err
	}
}

func simulateAction(c *cli.Context) error {
	payload := c.Int("payload")
	if payload < 0 || payload > message.MaxBlockBodySize {
		return cli.Exit(fmt.Sprintf("--payload must be between 0 and %d", message.MaxBlockBodySize), 2)
	}
	cfg, err := simulateConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	factory, err := newLoggerFactory(c.App.ErrWriter, cfg.LogLevel)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer func() { _ = factory.Sync() }()
	log := factory.NewLogger("simulate")

	address, _ := cfg.PodAddress()
	store, start, err := loadState(cfg, factory)
	if err != nil {
		return err
	}

	pipe := transport.NewPipeWithConfig(transport.PipeConfig{AutoProcess: true, Seed: cfg.Link.Seed})
	defer pipe.Close()
	pipe.SetCondition(cfg.Link.Condition())

	handler := podsim.DefaultHandler
	if payload > 0 {
		handler = podsim.EchoHandler
	}
	pod := podsim.New(podsim.Config{
		Address:            address,
		Handler:            handler,
		AckRequests:        cfg.Pod.AckRequests,
		RetransmitInterval: cfg.Pod.RetransmitInterval.Duration,
		MaxRetransmits:     cfg.Pod.MaxRetransmits,
		LoggerFactory:      factory,
	})
	if err := pod.Start(pipe.Endpoint(transport.SidePod)); err != nil {
		return err
	}
	defer pod.Stop()

	radio, err := transport.NewPipeRadio(transport.PipeRadioConfig{
		Endpoint:      pipe.Endpoint(transport.SideController),
		LoggerFactory: factory,
	})
	if err != nil {
		return err
	}

	msgLog := messagelog.New(messagelog.Config{LoggerFactory: factory})
	sess, err := exchange.NewSession(exchange.SessionConfig{
		Radio:         radio,
		Address:       address,
		State:         start,
		Observer:      session.StoreObserver(store, factory.NewLogger("session-store")),
		MessageLogger: msgLog,
		Params:        cfg.Timing.Params(),
		LoggerFactory: factory,
	})
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	log.Infof("pod %08x, starting at %v", address, start)

	failures := 0
	for i := 0; i < c.Int("count"); i++ {
		var block message.Block = &message.GetStatus{}
		if payload > 0 {
			block = &message.UnknownBlock{BlockType: 0x40, Body: bytes.Repeat([]byte{byte(i)}, payload)}
		}
		resp, err := sess.SendBlocks(block)
		if err != nil {
			failures++
			fmt.Fprintf(c.App.Writer, "%d: error: %v\n", i, err)
			continue
		}
		fmt.Fprintf(c.App.Writer, "%d: %v\n", i, resp)
	}

	stats := pod.Stats()
	fmt.Fprintf(c.App.Writer, "state %v, transmissions %d, pod frames %d (duplicates %d, retransmissions %d)\n",
		sess.State(), radio.Transmissions(), stats.FramesReceived, stats.Duplicates, stats.Retransmissions)

	if c.Bool("show-log") {
		fmt.Fprintln(c.App.Writer, msgLog)
	}
	if path := c.String("message-log"); path != "" {
		data, err := msgLog.Export()
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
	}

	if failures > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d requests failed", failures, c.Int("count")), 1)
	}
	return nil
}
