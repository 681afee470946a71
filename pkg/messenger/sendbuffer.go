// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"fmt"
	"io"
)

// SendBuffer stages outgoing bytes for a single deferred write.
//
// Once an Append fails the buffer is exhausted: the bytes already staged
// stay where they are and WriteTo refuses until Discard is called.
type SendBuffer struct {
	buf       []byte
	r, w      int
	exhausted bool
}

// NewSendBuffer creates a send buffer with fixed capacity
func NewSendBuffer(capacity int) *SendBuffer {
	return &SendBuffer{buf: make([]byte, capacity)}
}

// Append stages p. It returns false, staging nothing, when p does not fit.
func (s *SendBuffer) Append(p []byte) bool {
	if s.exhausted || s.w+len(p) > len(s.buf) {
		s.exhausted = true
		return false
	}
	s.w += copy(s.buf[s.w:], p)
	return true
}

// Len returns the number of staged bytes
func (s *SendBuffer) Len() int {
	return s.w - s.r
}

// Cap returns the buffer capacity
func (s *SendBuffer) Cap() int {
	return len(s.buf)
}

// Bytes returns the staged bytes. The slice aliases the buffer.
func (s *SendBuffer) Bytes() []byte {
	return s.buf[s.r:s.w]
}

// Exhausted reports whether an Append has failed since the last Discard
func (s *SendBuffer) Exhausted() bool {
	return s.exhausted
}

// Discard drops everything staged and clears the exhausted flag
func (s *SendBuffer) Discard() {
	s.r, s.w = 0, 0
	s.exhausted = false
}

// WriteTo drains the staged bytes to w in one write and resets the cursors.
func (s *SendBuffer) WriteTo(w io.Writer) (int64, error) {
	if s.exhausted {
		return 0, fmt.Errorf("%w: %d bytes staged, discard before flushing", ErrSendBufferExhausted, s.Len())
	}
	if s.Len() == 0 {
		return 0, nil
	}
	n, err := w.Write(s.buf[s.r:s.w])
	s.r += n
	if err != nil {
		return int64(n), err
	}
	s.r, s.w = 0, 0
	return int64(n), nil
}
