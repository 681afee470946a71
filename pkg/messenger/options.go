// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"fmt"
	"time"

	"github.com/loopholelabs/logging/types"
)

// Option configures a Parser or Messenger.
type Option func(*config)

type config struct {
	separators     Separators
	polynomial     Polynomial
	bufferSize     int
	sendBufferSize int
	binaryID       bool
	newlines       bool
	clock          Clock
	log            types.Logger
	stats          *Statistics
	pollInterval   time.Duration
	timeout        time.Duration
}

func defaultConfig() config {
	return config{
		separators:     DefaultSeparators(),
		polynomial:     PolyNone,
		bufferSize:     DefaultBufferSize,
		sendBufferSize: DefaultSendBufferSize,
		clock:          SystemClock(),
		pollInterval:   DefaultPollInterval,
		timeout:        DefaultTimeout,
	}
}

func newConfig(opts []Option) (config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.separators.Validate(); err != nil {
		return cfg, err
	}
	if cfg.bufferSize < MinBufferSize {
		return cfg, fmt.Errorf("messenger: buffer size %d below minimum %d", cfg.bufferSize, MinBufferSize)
	}
	if cfg.sendBufferSize < 0 {
		return cfg, fmt.Errorf("messenger: negative send buffer size %d", cfg.sendBufferSize)
	}
	if _, ok := crcVariants[cfg.polynomial]; !ok && cfg.polynomial != PolyNone {
		return cfg, fmt.Errorf("messenger: unsupported CRC %s", cfg.polynomial)
	}
	if cfg.stats == nil {
		cfg.stats = NewStatistics()
	}
	return cfg, nil
}

// WithSeparators sets the field separator, command separator and escape character.
func WithSeparators(s Separators) Option {
	return func(c *config) {
		c.separators = s
	}
}

// WithPolynomial enables CRC-16 check values with the given variant.
func WithPolynomial(p Polynomial) Option {
	return func(c *config) {
		c.polynomial = p
	}
}

// WithBufferSize sets the command buffer capacity. A message longer than
// size-1 bytes is truncated.
func WithBufferSize(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// WithSendBufferSize sets the capacity of the buffered-send staging area.
func WithSendBufferSize(size int) Option {
	return func(c *config) {
		c.sendBufferSize = size
	}
}

// WithBinaryID sends and parses the command identifier as one raw byte
// instead of decimal text.
func WithBinaryID() Option {
	return func(c *config) {
		c.binaryID = true
	}
}

// WithNewlines appends "\r\n" after every sent command separator.
func WithNewlines() Option {
	return func(c *config) {
		c.newlines = true
	}
}

// WithClock replaces the time source used by acknowledgment waits.
func WithClock(clock Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithLogger enables structured logging. A nil logger disables it.
func WithLogger(log types.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithStatistics shares a statistics tracker, e.g. with a metrics collector.
func WithStatistics(stats *Statistics) Option {
	return func(c *config) {
		c.stats = stats
	}
}

// WithPollInterval sets how long an acknowledgment wait sleeps when the
// channel has no data.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		c.pollInterval = d
	}
}

// WithDefaultTimeout sets the acknowledgment timeout used when a caller
// passes zero.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}
