// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"strconv"
	"strings"
	"time"
)

// Message is one received command. Its fields stay escaped in the command
// buffer until the cursor reaches them; each is unescaped in place exactly
// once.
type Message struct {
	sep      Separators
	binaryID bool
	stats    *Statistics

	raw    []byte // command buffer, len == capacity
	length int
	pos    int // start of the next unread field; > length when exhausted

	token    []byte
	argOK    bool
	id       uint8
	idOK     bool
	state    State
	received time.Time

	truncated       bool
	integrityFailed bool
	checkValue      uint16 // received check value
	computedValue   uint16
}

// reset prepares the message for a new command of n raw bytes
func (m *Message) reset(n int, truncated bool) {
	m.length = n
	m.pos = 0
	m.token = nil
	m.argOK = false
	m.id = 0
	m.idOK = false
	m.truncated = truncated
	m.integrityFailed = false
	m.checkValue = 0
	m.computedValue = 0
	m.state = StateArgumentsInProgress
}

// parseID consumes the first field as the command identifier
func (m *Message) parseID() {
	if !m.advance() {
		return
	}
	if m.binaryID {
		if len(m.token) == 1 {
			m.id = m.token[0]
			m.idOK = true
		}
	} else {
		v, err := strconv.ParseUint(strings.TrimSpace(string(m.token)), 10, 8)
		if err == nil {
			m.id = uint8(v)
			m.idOK = true
		}
	}
	m.token = nil
}

// advance moves the cursor to the next field and unescapes it
func (m *Message) advance() bool {
	if m.pos > m.length {
		return false
	}
	start := m.pos
	end := m.length
	escapeNext := false
	for i := start; i < m.length; i++ {
		b := m.raw[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		if b == m.sep.Escape {
			escapeNext = true
			continue
		}
		if b == m.sep.Field {
			end = i
			break
		}
	}
	m.pos = end + 1
	field := m.raw[start:end]
	m.token = field[:m.sep.UnescapeInPlace(field)]
	return true
}

// Next advances to the next argument. It returns false when no argument
// remains; the previous token stays available through Token.
func (m *Message) Next() bool {
	if m.pos > m.length {
		return false
	}
	return m.advance()
}

// Available reports whether another argument can be read
func (m *Message) Available() bool {
	return m.pos <= m.length
}

// ArgOK reports whether the last typed read succeeded
func (m *Message) ArgOK() bool {
	return m.argOK
}

// Token returns the current decoded argument. The slice aliases the command
// buffer and is only valid until the next message is begun.
func (m *Message) Token() []byte {
	return m.token
}

// CommandID returns the command identifier
func (m *Message) CommandID() uint8 {
	return m.id
}

// IDOK reports whether the identifier field was a valid identifier
func (m *Message) IDOK() bool {
	return m.idOK
}

// State returns StateArgumentsInProgress
func (m *Message) State() State {
	return m.state
}

// Truncated reports whether the message overflowed the command buffer
func (m *Message) Truncated() bool {
	return m.truncated
}

// IntegrityFailed reports whether the check value did not match
func (m *Message) IntegrityFailed() bool {
	return m.integrityFailed
}

// CheckValue returns the received check value (0 without CRC)
func (m *Message) CheckValue() uint16 {
	return m.checkValue
}

// Timestamp returns when the message completed
func (m *Message) Timestamp() time.Time {
	return m.received
}

// Len returns the raw length of the message without its check field
func (m *Message) Len() int {
	return m.length
}

// Rest reads all remaining arguments and returns copies of them
func (m *Message) Rest() [][]byte {
	var fields [][]byte
	for m.Next() {
		field := make([]byte, len(m.token))
		copy(field, m.token)
		fields = append(fields, field)
	}
	return fields
}
