// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"bytes"
	"io"
	"sync"
)

// Channel is the byte transport a Messenger runs on. ReadByte must not
// block; it returns ErrNoData when Available is false.
//
// Available says nothing about the end of the stream: a channel whose peer
// has gone away simply never becomes available again, and FeedIncoming
// returns nil for it. Transports that can end (StreamChannel) report that
// through their own Closed and Err methods, which receive loops poll.
type Channel interface {
	Available() bool
	ReadByte() (byte, error)
	Write(p []byte) (int, error)
	WriteByte(c byte) error
}

// StreamChannel adapts a blocking io.Reader/io.Writer (serial port,
// WebSocket) to a Channel. A reader goroutine copies incoming bytes into a
// bounded queue; the messenger goroutine is its only consumer.
type StreamChannel struct {
	w       io.Writer
	closer  io.Closer
	in      chan byte
	done    chan struct{}
	stopped chan struct{}
	one     [1]byte

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

// NewStreamChannel starts reading from rw. depth bounds the number of
// buffered incoming bytes; the reader blocks when the queue is full.
func NewStreamChannel(rw io.ReadWriter, depth int) *StreamChannel {
	if depth <= 0 {
		depth = DefaultSendBufferSize
	}
	s := &StreamChannel{
		w:       rw,
		in:      make(chan byte, depth),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if c, ok := rw.(io.Closer); ok {
		s.closer = c
	}
	go s.readLoop(rw)
	return s
}

func (s *StreamChannel) readLoop(r io.Reader) {
	defer close(s.stopped)
	defer close(s.in)
	buf := make([]byte, 128)
	for {
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			select {
			case s.in <- buf[i]:
			case <-s.done:
				return
			}
		}
		if err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}
	}
}

// Available reports whether a byte can be read without blocking. It stays
// false once the reader has stopped and the queue is drained; use Closed
// and Err to detect that.
func (s *StreamChannel) Available() bool {
	return len(s.in) > 0
}

// ReadByte returns the next queued byte. Once the reader has stopped and
// the queue is drained it returns the read error (io.EOF if none).
func (s *StreamChannel) ReadByte() (byte, error) {
	select {
	case b, ok := <-s.in:
		if !ok {
			if err := s.Err(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		return b, nil
	default:
		return 0, ErrNoData
	}
}

// Write sends p to the underlying writer
func (s *StreamChannel) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// WriteByte sends one byte to the underlying writer
func (s *StreamChannel) WriteByte(c byte) error {
	s.one[0] = c
	_, err := s.w.Write(s.one[:])
	return err
}

// Err returns the error that stopped the reader, if any
func (s *StreamChannel) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Closed reports whether the channel was closed, or the reader stopped and
// every queued byte has been consumed
func (s *StreamChannel) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
	}
	select {
	case <-s.stopped:
		return len(s.in) == 0
	default:
		return false
	}
}

// Close stops the reader and closes the underlying stream when it is an
// io.Closer
func (s *StreamChannel) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}

// BufferChannel is an in-memory Channel. Incoming bytes are queued with
// Inject; everything written is collected and returned by Written.
type BufferChannel struct {
	in  []byte
	out bytes.Buffer
}

// NewBufferChannel creates a channel with the given bytes already queued
func NewBufferChannel(incoming []byte) *BufferChannel {
	c := &BufferChannel{}
	c.Inject(incoming)
	return c
}

// Inject queues bytes for reading
func (c *BufferChannel) Inject(p []byte) {
	c.in = append(c.in, p...)
}

// Available reports whether queued bytes remain
func (c *BufferChannel) Available() bool {
	return len(c.in) > 0
}

// ReadByte dequeues one byte
func (c *BufferChannel) ReadByte() (byte, error) {
	if len(c.in) == 0 {
		return 0, ErrNoData
	}
	b := c.in[0]
	c.in = c.in[1:]
	return b, nil
}

// Write records p
func (c *BufferChannel) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

// WriteByte records one byte
func (c *BufferChannel) WriteByte(b byte) error {
	return c.out.WriteByte(b)
}

// Written returns everything written so far
func (c *BufferChannel) Written() []byte {
	return c.out.Bytes()
}

// ResetWritten clears the written bytes
func (c *BufferChannel) ResetWritten() {
	c.out.Reset()
}
