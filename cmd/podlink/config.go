package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/backkem/podlink/pkg/exchange"
	"github.com/backkem/podlink/pkg/transport"
)

// DefaultAddress is the pod address used when none is configured.
const DefaultAddress = 0x1f01482a

// Config is a podlink.yaml file. Every value is optional; command-line
// flags override it.
type Config struct {
	Address   string       `yaml:"address"`
	StatePath string       `yaml:"state_path"`
	LogLevel  string       `yaml:"log_level"`
	Timing    TimingConfig `yaml:"timing"`
	Link      LinkConfig   `yaml:"link"`
	Pod       PodConfig    `yaml:"pod"`
}

// TimingConfig overrides exchange.DefaultParams field by field.
type TimingConfig struct {
	PacketResponseTimeout         Duration `yaml:"packet_response_timeout"`
	ExchangeTimeout               Duration `yaml:"exchange_timeout"`
	PreambleExtension             Duration `yaml:"preamble_extension"`
	ContinuationPreambleExtension Duration `yaml:"continuation_preamble_extension"`
	QuietWindow                   Duration `yaml:"quiet_window"`
	RadioRetryCount               *int     `yaml:"radio_retry_count,omitempty"`
	ContinuationRepeatCount       *int     `yaml:"continuation_repeat_count,omitempty"`
	DrainRepeatCount              *int     `yaml:"drain_repeat_count,omitempty"`
}

// LinkConfig describes the simulated radio link.
type LinkConfig struct {
	DropRate      float64  `yaml:"drop_rate"`
	DuplicateRate float64  `yaml:"duplicate_rate"`
	DelayMin      Duration `yaml:"delay_min"`
	DelayMax      Duration `yaml:"delay_max"`
	Seed          int64    `yaml:"seed"`
}

// PodConfig describes the simulated pod.
type PodConfig struct {
	RetransmitInterval Duration `yaml:"retransmit_interval"`
	MaxRetransmits     int      `yaml:"max_retransmits"`
	AckRequests        bool     `yaml:"ack_requests"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "165ms", "20s").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML writes the duration in time.Duration notation.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return &cfg, nil
}

// PodAddress parses Address as hex, with or without a 0x prefix.
func (c *Config) PodAddress() (uint32, error) {
	if c.Address == "" {
		return DefaultAddress, nil
	}
	return parseAddress(c.Address)
}

func parseAddress(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint32(v), nil
}

// Params applies the timing overrides to exchange.DefaultParams.
func (t TimingConfig) Params() exchange.Params {
	p := exchange.DefaultParams()
	if t.PacketResponseTimeout.Duration > 0 {
		p.PacketResponseTimeout = t.PacketResponseTimeout.Duration
	}
	if t.ExchangeTimeout.Duration > 0 {
		p.ExchangeTimeout = t.ExchangeTimeout.Duration
	}
	if t.PreambleExtension.Duration > 0 {
		p.PreambleExtension = t.PreambleExtension.Duration
	}
	if t.ContinuationPreambleExtension.Duration > 0 {
		p.ContinuationPreambleExtension = t.ContinuationPreambleExtension.Duration
	}
	if t.QuietWindow.Duration > 0 {
		p.QuietWindow = t.QuietWindow.Duration
	}
	if t.RadioRetryCount != nil {
		p.RadioRetryCount = *t.RadioRetryCount
	}
	if t.ContinuationRepeatCount != nil {
		p.ContinuationRepeatCount = *t.ContinuationRepeatCount
	}
	if t.DrainRepeatCount != nil {
		p.DrainRepeatCount = *t.DrainRepeatCount
	}
	return p
}

// Condition converts the link settings to a transport.NetworkCondition.
func (l LinkConfig) Condition() transport.NetworkCondition {
	return transport.NetworkCondition{
		DropRate:      l.DropRate,
		DuplicateRate: l.DuplicateRate,
		DelayMin:      l.DelayMin.Duration,
		DelayMax:      l.DelayMax.Duration,
	}
}

// Validate checks the config for out-of-range values.
func (c *Config) Validate() error {
	if _, err := c.PodAddress(); err != nil {
		return err
	}
	if err := c.Timing.Params().Validate(); err != nil {
		return err
	}
	for name, rate := range map[string]float64{"drop_rate": c.Link.DropRate, "duplicate_rate": c.Link.DuplicateRate} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("link.%s %v out of range [0, 1]", name, rate)
		}
	}
	if c.Link.DelayMax.Duration < c.Link.DelayMin.Duration {
		return fmt.Errorf("link.delay_max %v below delay_min %v", c.Link.DelayMax, c.Link.DelayMin)
	}
	if c.Pod.MaxRetransmits < 0 {
		return fmt.Errorf("pod.max_retransmits %d is negative", c.Pod.MaxRetransmits)
	}
	if _, _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
