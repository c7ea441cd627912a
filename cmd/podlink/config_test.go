package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/backkem/podlink/pkg/exchange"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "podlink.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
address: "0x1f0b3554"
state_path: /tmp/pod.state
log_level: debug
timing:
  packet_response_timeout: 200ms
  exchange_timeout: 5s
  radio_retry_count: 0
link:
  drop_rate: 0.1
  delay_min: 1ms
  delay_max: 4ms
  seed: 42
pod:
  retransmit_interval: 150ms
  ack_requests: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	addr, err := cfg.PodAddress()
	if err != nil || addr != 0x1f0b3554 {
		t.Errorf("PodAddress() = %08x, %v", addr, err)
	}

	p := cfg.Timing.Params()
	want := exchange.DefaultParams()
	want.PacketResponseTimeout = 200 * time.Millisecond
	want.ExchangeTimeout = 5 * time.Second
	want.RadioRetryCount = 0
	if p != want {
		t.Errorf("Params() = %+v, want %+v", p, want)
	}

	cond := cfg.Link.Condition()
	if cond.DropRate != 0.1 || cond.DelayMin != time.Millisecond || cond.DelayMax != 4*time.Millisecond {
		t.Errorf("Condition() = %+v", cond)
	}
	if cfg.Link.Seed != 42 || cfg.Pod.RetransmitInterval.Duration != 150*time.Millisecond || !cfg.Pod.AckRequests {
		t.Errorf("config = %+v", cfg)
	}
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if addr, _ := cfg.PodAddress(); addr != DefaultAddress {
		t.Errorf("PodAddress() = %08x, want default", addr)
	}
	if cfg.Timing.Params() != exchange.DefaultParams() {
		t.Errorf("Params() = %+v, want defaults", cfg.Timing.Params())
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing file error = %v", err)
	}
	if _, err := LoadConfig(writeConfig(t, "timing:\n  quiet_window: soon\n")); err == nil {
		t.Error("invalid duration accepted")
	}
	if _, err := LoadConfig(writeConfig(t, "address: [1, 2\n")); err == nil {
		t.Error("invalid YAML accepted")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad address", Config{Address: "pod"}},
		{"drop rate", Config{Link: LinkConfig{DropRate: 1.5}}},
		{"duplicate rate", Config{Link: LinkConfig{DuplicateRate: -0.1}}},
		{"delay order", Config{Link: LinkConfig{DelayMin: Duration{time.Second}, DelayMax: Duration{time.Millisecond}}}},
		{"retransmits", Config{Pod: PodConfig{MaxRetransmits: -1}}},
		{"log level", Config{LogLevel: "loud"}},
		{"negative retry", Config{Timing: TimingConfig{RadioRetryCount: intPtr(-1)}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Error("Validate() succeeded")
			}
		})
	}
}

func intPtr(v int) *int { return &v }

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		trace bool
		ok    bool
	}{
		{"", false, true},
		{"trace", true, true},
		{"DEBUG", false, true},
		{"warn", false, true},
		{"error", false, true},
		{"verbose", false, false},
	}
	for _, tc := range tests {
		_, trace, err := parseLevel(tc.in)
		if (err == nil) != tc.ok || trace != tc.trace {
			t.Errorf("parseLevel(%q) = trace %v, err %v", tc.in, trace, err)
		}
	}
}
