// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"errors"
	"fmt"
	"time"

	"github.com/loopholelabs/logging/types"
)

// Handler is invoked for a dispatched message. Arguments are pulled from the
// message (or through the Messenger pass-through methods).
type Handler func(*Message)

// Messenger runs the command protocol over one Channel: a parser and handler
// table on the receive side, a composer with optional send buffer on the
// send side.
//
// A Messenger has no internal locking and must be driven from a single
// goroutine.
type Messenger struct {
	ch     Channel
	parser *Parser
	log    types.Logger
	stats  *Statistics
	clock  Clock

	sep          Separators
	binaryID     bool
	newlines     bool
	pollInterval time.Duration
	timeout      time.Duration

	handlers       map[uint8]Handler
	defaultHandler Handler
	current        *Message
	paused         bool

	// Composer
	crc        *CRC
	sendBuf    *SendBuffer
	buffered   bool
	inProgress bool
	sendErr    error
	scratch    []byte
}

// New creates a messenger on ch
func New(ch Channel, opts ...Option) (*Messenger, error) {
	if ch == nil {
		return nil, errors.New("messenger: nil channel")
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	m := &Messenger{
		ch:           ch,
		parser:       newParser(cfg),
		log:          cfg.log,
		stats:        cfg.stats,
		clock:        cfg.clock,
		sep:          cfg.separators,
		binaryID:     cfg.binaryID,
		newlines:     cfg.newlines,
		pollInterval: cfg.pollInterval,
		timeout:      cfg.timeout,
		handlers:     make(map[uint8]Handler),
		crc:          NewCRC(cfg.polynomial),
		scratch:      make([]byte, 0, 64),
	}
	if cfg.sendBufferSize > 0 {
		m.sendBuf = NewSendBuffer(cfg.sendBufferSize)
	}

	if m.log != nil {
		m.log.Debug().
			Str("crc", cfg.polynomial.String()).
			Int("buffer", cfg.bufferSize).
			Int("send_buffer", cfg.sendBufferSize).
			Msg("messenger created")
	}
	return m, nil
}

// Attach registers a handler for a command identifier, replacing any
// existing one
func (m *Messenger) Attach(id uint8, h Handler) error {
	if _, exists := m.handlers[id]; !exists && len(m.handlers) >= MaxHandlers {
		return fmt.Errorf("%w: %d handlers attached", ErrHandlerTableFull, len(m.handlers))
	}
	if h == nil {
		delete(m.handlers, id)
		return nil
	}
	m.handlers[id] = h
	return nil
}

// AttachDefault registers the handler for identifiers with no handler of
// their own, including identifiers that fail to parse
func (m *Messenger) AttachDefault(h Handler) {
	m.defaultHandler = h
}

// FeedIncoming drains every available byte from the channel into the parser
// and dispatches each completed message. Framing and integrity problems are
// counted and logged, not returned; only channel errors are. The end of the
// stream is not one of them, since Available simply stays false; poll the
// transport (StreamChannel.Closed and Err) for that.
func (m *Messenger) FeedIncoming() error {
	for m.ch.Available() {
		b, err := m.ch.ReadByte()
		if err != nil {
			if errors.Is(err, ErrNoData) {
				return nil
			}
			return err
		}
		if msg, _ := m.receive(b); msg != nil && !m.paused {
			m.dispatch(msg)
		}
	}
	return nil
}

// receive feeds one byte and begins the message if it completed it
func (m *Messenger) receive(b byte) (*Message, error) {
	state, err := m.parser.Feed(b)
	if err != nil && m.log != nil {
		m.log.Warn().Err(err).Msg("receive")
	}
	if state != StateMessageComplete {
		return nil, err
	}

	msg, berr := m.parser.Begin()
	if msg == nil {
		return nil, berr
	}
	m.current = msg
	if berr != nil {
		if m.log != nil {
			m.log.Warn().Err(berr).Uint8("id", msg.CommandID()).Msg("integrity check failed")
		}
		return msg, berr
	}
	if m.log != nil {
		m.log.Trace().Uint8("id", msg.CommandID()).Int("length", msg.Len()).Msg("message received")
	}
	return msg, err
}

// dispatch routes an intact message to its handler
func (m *Messenger) dispatch(msg *Message) {
	switch {
	case msg.IntegrityFailed():
		return
	case msg.Truncated():
		if m.log != nil {
			m.log.Debug().Int("length", msg.Len()).Msg("truncated message not dispatched")
		}
		return
	case msg.Len() == 0:
		return
	}

	h := m.defaultHandler
	if msg.IDOK() {
		if handler, ok := m.handlers[msg.CommandID()]; ok {
			h = handler
		}
	}
	if h == nil {
		m.stats.Unhandled.Add(1)
		if m.log != nil {
			m.log.Debug().Uint8("id", msg.CommandID()).Msg("no handler")
		}
		return
	}
	m.stats.Dispatched.Add(1)
	h(msg)
}

// Current returns the message most recently received, or nil
func (m *Messenger) Current() *Message {
	return m.current
}

// Next advances the current message's argument cursor
func (m *Messenger) Next() bool {
	if m.current == nil {
		return false
	}
	return m.current.Next()
}

// Available reports whether the current message has another argument
func (m *Messenger) Available() bool {
	if m.current == nil {
		return false
	}
	return m.current.Available()
}

// ArgOK reports whether the last typed read on the current message succeeded
func (m *Messenger) ArgOK() bool {
	if m.current == nil {
		return false
	}
	return m.current.ArgOK()
}

// CommandID returns the current message's identifier
func (m *Messenger) CommandID() uint8 {
	if m.current == nil {
		return 0
	}
	return m.current.CommandID()
}

// Parser returns the receive parser
func (m *Messenger) Parser() *Parser {
	return m.parser
}

// Statistics returns the messenger's counters
func (m *Messenger) Statistics() *Statistics {
	return m.stats
}

// Separators returns the framing characters in use
func (m *Messenger) Separators() Separators {
	return m.sep
}
