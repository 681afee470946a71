// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"fmt"
)

// Parser splits an incoming byte stream into messages, one byte at a time.
//
// It holds at most one completed message. Begin hands that message to the
// argument cursor and returns the parser to StateAccumulating; the cursor
// owns a separate buffer, so bytes of the following message never overwrite
// fields a handler is still reading. A byte fed while a completed message is
// still unclaimed drops that message.
type Parser struct {
	sep      Separators
	binaryID bool
	crc      *CRC
	clock    Clock
	stats    *Statistics

	buffer      []byte
	bufferIndex int
	escapeNext  bool
	discarding  bool // resynchronizing after an overflow
	truncated   bool
	state       State

	msg Message
}

// NewParser creates a parser. Only framing options (separators, CRC,
// buffer size, binary ID, clock, statistics) apply.
func NewParser(opts ...Option) (*Parser, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return newParser(cfg), nil
}

func newParser(cfg config) *Parser {
	return &Parser{
		sep:      cfg.separators,
		binaryID: cfg.binaryID,
		crc:      NewCRC(cfg.polynomial),
		clock:    cfg.clock,
		stats:    cfg.stats,
		buffer:   make([]byte, cfg.bufferSize),
		state:    StateAccumulating,
		msg: Message{
			sep:      cfg.separators,
			binaryID: cfg.binaryID,
			stats:    cfg.stats,
			raw:      make([]byte, cfg.bufferSize),
		},
	}
}

// Reset discards any partial or unclaimed message and resynchronizes on the
// next byte
func (p *Parser) Reset() {
	p.bufferIndex = 0
	p.escapeNext = false
	p.discarding = false
	p.truncated = false
	p.state = StateAccumulating
}

// State returns the receive state
func (p *Parser) State() State {
	return p.state
}

// Capacity returns the command buffer size
func (p *Parser) Capacity() int {
	return len(p.buffer)
}

// Buffered returns the number of bytes accumulated for the current message
func (p *Parser) Buffered() int {
	return p.bufferIndex
}

// Feed processes a single byte through the framing state machine and
// returns the resulting state. StateMessageComplete means Begin can be
// called. ErrFramingOverflow accompanies a truncated completion;
// ErrMessageDropped reports that an unclaimed message was discarded.
func (p *Parser) Feed(b byte) (State, error) {
	var err error
	if p.state == StateMessageComplete {
		p.stats.Dropped.Add(1)
		err = fmt.Errorf("%w: %d bytes", ErrMessageDropped, p.bufferIndex)
		p.bufferIndex = 0
		p.truncated = false
		p.state = StateAccumulating
	}

	// Single-byte lookback: the byte after an unescaped escape is literal
	literal := p.escapeNext
	if p.escapeNext {
		p.escapeNext = false
	} else if b == p.sep.Escape {
		p.escapeNext = true
	}

	if !literal && b == p.sep.Command {
		if p.discarding {
			p.discarding = false
			return p.state, err
		}
		p.state = StateMessageComplete
		return p.state, err
	}

	if p.discarding {
		return p.state, err
	}

	// Line endings between commands
	if !literal && p.bufferIndex == 0 && (b == '\r' || b == '\n') {
		return p.state, err
	}

	// Reserve one slot; on overflow complete with what we have and drop the
	// rest up to the next command separator
	if p.bufferIndex >= len(p.buffer)-1 {
		p.stats.FramingOverflows.Add(1)
		p.discarding = true
		p.truncated = true
		p.state = StateMessageComplete
		return p.state, fmt.Errorf("%w: message truncated at %d bytes", ErrFramingOverflow, p.bufferIndex)
	}

	p.buffer[p.bufferIndex] = b
	p.bufferIndex++
	return p.state, err
}

// Begin claims the completed message for argument extraction and returns
// the parser to StateAccumulating. With a CRC configured the trailing check
// field is verified and stripped; on mismatch the message is still returned,
// marked IntegrityFailed, together with ErrIntegrityFailure.
func (p *Parser) Begin() (*Message, error) {
	if p.state != StateMessageComplete {
		return nil, ErrNoMessage
	}

	// Swap buffers so the cursor owns the completed bytes
	p.buffer, p.msg.raw = p.msg.raw, p.buffer
	n := p.bufferIndex
	truncated := p.truncated

	p.bufferIndex = 0
	p.truncated = false
	p.state = StateAccumulating

	m := &p.msg
	m.reset(n, truncated)
	m.received = p.clock.Now()
	p.stats.Received.Add(1)

	var err error
	if p.crc.Enabled() {
		err = p.verify(m)
		if err != nil {
			m.integrityFailed = true
			p.stats.IntegrityFailures.Add(1)
		}
	}

	m.parseID()
	return m, err
}

// verify recomputes the check value over the logical bytes preceding the
// last field separator and compares it with the trailing check field.
func (p *Parser) verify(m *Message) error {
	raw := m.raw[:m.length]

	last := -1
	escapeNext := false
	for i, b := range raw {
		if escapeNext {
			escapeNext = false
			continue
		}
		if b == p.sep.Escape {
			escapeNext = true
			continue
		}
		if b == p.sep.Field {
			last = i
		}
	}
	if last < 0 {
		return fmt.Errorf("%w: missing check field", ErrIntegrityFailure)
	}

	p.crc.Reset()
	escapeNext = false
	for _, b := range raw[:last] {
		if !escapeNext && b == p.sep.Escape {
			escapeNext = true
			continue
		}
		escapeNext = false
		p.crc.UpdateByte(b)
	}
	computed := p.crc.Sum()
	m.computedValue = computed

	check := raw[last+1:]
	n := p.sep.UnescapeInPlace(check)
	m.length = last
	if n != 2 {
		return fmt.Errorf("%w: check field has %d bytes", ErrIntegrityFailure, n)
	}

	m.checkValue = ByteOrder.Uint16(check[:2])
	if m.checkValue != computed {
		return fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrIntegrityFailure, computed, m.checkValue)
	}
	return nil
}
