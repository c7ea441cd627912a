package exchange

import (
	"fmt"
	"time"
)

// Default timing. These match the pod's radio duty cycle.
const (
	// DefaultPacketResponseTimeout is how long the radio listens after each
	// transmission.
	DefaultPacketResponseTimeout = 165 * time.Millisecond

	// DefaultExchangeTimeout bounds one packet exchange, including every retry.
	DefaultExchangeTimeout = 20 * time.Second

	// DefaultPreambleExtension is the wake-up preamble for request fragments.
	DefaultPreambleExtension = 127 * time.Millisecond

	// DefaultRadioRetryCount is the number of radio-level send-and-listen
	// repeats per attempt.
	DefaultRadioRetryCount = 20

	// DefaultContinuationRepeatCount is the repeat count for acks that request
	// a continuation frame.
	DefaultContinuationRepeatCount = 3

	// DefaultContinuationPreambleExtension is the preamble for acks, when the
	// pod is already awake.
	DefaultContinuationPreambleExtension = 40 * time.Millisecond

	// DefaultQuietWindow is how long the pod must stay silent before the
	// channel is free.
	DefaultQuietWindow = 300 * time.Millisecond

	// DefaultDrainRepeatCount is the repeat count for drain acks.
	DefaultDrainRepeatCount = 5
)

// Params holds the session timing and repeat configuration.
type Params struct {
	// PacketResponseTimeout is the per-attempt listen window.
	PacketResponseTimeout time.Duration `yaml:"packet_response_timeout"`

	// ExchangeTimeout bounds one packet exchange and one drain.
	ExchangeTimeout time.Duration `yaml:"exchange_timeout"`

	// PreambleExtension is used for request fragments.
	PreambleExtension time.Duration `yaml:"preamble_extension"`

	// RadioRetryCount is passed to the radio for exchange attempts.
	RadioRetryCount int `yaml:"radio_retry_count"`

	// ContinuationRepeatCount is the repeat count for continuation requests.
	ContinuationRepeatCount int `yaml:"continuation_repeat_count"`

	// ContinuationPreambleExtension is used for continuation and drain acks.
	ContinuationPreambleExtension time.Duration `yaml:"continuation_preamble_extension"`

	// QuietWindow is the drain listen window.
	QuietWindow time.Duration `yaml:"quiet_window"`

	// DrainRepeatCount is the repeat count for drain acks.
	DrainRepeatCount int `yaml:"drain_repeat_count"`
}

// DefaultParams returns the default timing.
func DefaultParams() Params {
	return Params{
		PacketResponseTimeout:         DefaultPacketResponseTimeout,
		ExchangeTimeout:               DefaultExchangeTimeout,
		PreambleExtension:             DefaultPreambleExtension,
		RadioRetryCount:               DefaultRadioRetryCount,
		ContinuationRepeatCount:       DefaultContinuationRepeatCount,
		ContinuationPreambleExtension: DefaultContinuationPreambleExtension,
		QuietWindow:                   DefaultQuietWindow,
		DrainRepeatCount:              DefaultDrainRepeatCount,
	}
}

// Validate checks that timeouts are positive and counts non-negative.
func (p Params) Validate() error {
	switch {
	case p.PacketResponseTimeout <= 0:
		return fmt.Errorf("%w: packet response timeout %v", ErrInvalidParams, p.PacketResponseTimeout)
	case p.ExchangeTimeout <= 0:
		return fmt.Errorf("%w: exchange timeout %v", ErrInvalidParams, p.ExchangeTimeout)
	case p.QuietWindow <= 0:
		return fmt.Errorf("%w: quiet window %v", ErrInvalidParams, p.QuietWindow)
	case p.PreambleExtension < 0 || p.ContinuationPreambleExtension < 0:
		return fmt.Errorf("%w: negative preamble extension", ErrInvalidParams)
	case p.RadioRetryCount < 0 || p.ContinuationRepeatCount < 0 || p.DrainRepeatCount < 0:
		return fmt.Errorf("%w: negative repeat count", ErrInvalidParams)
	}
	return nil
}
