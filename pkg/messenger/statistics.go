// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Statistics tracks traffic and error counters for one messenger.
// Counters are atomic so they can be read while the messenger runs.
type Statistics struct {
	startTime atomic.Int64 // unix nanoseconds

	// Receive side
	Received          atomic.Uint64 // completed messages handed to the cursor
	Dispatched        atomic.Uint64
	Unhandled         atomic.Uint64
	FramingOverflows  atomic.Uint64
	Dropped           atomic.Uint64
	IntegrityFailures atomic.Uint64
	DecodeMismatches  atomic.Uint64

	// Send side
	Sent         atomic.Uint64
	SendFailures atomic.Uint64
	Acks         atomic.Uint64
	AckTimeouts  atomic.Uint64
}

// Snapshot is a point-in-time copy of Statistics with derived rates
type Snapshot struct {
	Elapsed time.Duration

	Received          uint64
	Dispatched        uint64
	Unhandled         uint64
	FramingOverflows  uint64
	Dropped           uint64
	IntegrityFailures uint64
	DecodeMismatches  uint64
	Sent              uint64
	SendFailures      uint64
	Acks              uint64
	AckTimeouts       uint64

	MessageRate float64 // messages/sec
	ErrorRate   float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	s := &Statistics{}
	s.startTime.Store(time.Now().UnixNano())
	return s
}

// Errors returns the total of all receive and send error counters
func (s Snapshot) Errors() uint64 {
	return s.FramingOverflows + s.Dropped + s.IntegrityFailures + s.DecodeMismatches + s.SendFailures + s.AckTimeouts
}

// Snapshot copies the counters and calculates rates
func (s *Statistics) Snapshot() Snapshot {
	snap := Snapshot{
		Elapsed:           time.Since(time.Unix(0, s.startTime.Load())),
		Received:          s.Received.Load(),
		Dispatched:        s.Dispatched.Load(),
		Unhandled:         s.Unhandled.Load(),
		FramingOverflows:  s.FramingOverflows.Load(),
		Dropped:           s.Dropped.Load(),
		IntegrityFailures: s.IntegrityFailures.Load(),
		DecodeMismatches:  s.DecodeMismatches.Load(),
		Sent:              s.Sent.Load(),
		SendFailures:      s.SendFailures.Load(),
		Acks:              s.Acks.Load(),
		AckTimeouts:       s.AckTimeouts.Load(),
	}
	if elapsed := snap.Elapsed.Seconds(); elapsed > 0 {
		snap.MessageRate = float64(snap.Received) / elapsed
		snap.ErrorRate = float64(snap.Errors()) / elapsed
	}
	return snap
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var validPercent float64
	if snap.Received > 0 {
		valid := snap.Received - min(snap.Received, snap.IntegrityFailures+snap.FramingOverflows)
		validPercent = float64(valid) * 100.0 / float64(snap.Received)
	}

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", snap.Elapsed.Seconds())
	result += fmt.Sprintf("Received:        %8d (%.1f%% intact)\n", snap.Received, validPercent)
	result += fmt.Sprintf("Dispatched:      %8d\n", snap.Dispatched)

	if snap.Unhandled > 0 {
		result += fmt.Sprintf("Unhandled:       %8d\n", snap.Unhandled)
	}
	if snap.IntegrityFailures > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d\n", snap.IntegrityFailures)
	}
	if snap.FramingOverflows > 0 {
		result += fmt.Sprintf("Overflows:       %8d\n", snap.FramingOverflows)
	}
	if snap.Dropped > 0 {
		result += fmt.Sprintf("Dropped:         %8d\n", snap.Dropped)
	}
	if snap.DecodeMismatches > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", snap.DecodeMismatches)
	}

	result += fmt.Sprintf("Sent:            %8d\n", snap.Sent)
	if snap.SendFailures > 0 {
		result += fmt.Sprintf("Send Failures:   %8d\n", snap.SendFailures)
	}
	if snap.Acks > 0 || snap.AckTimeouts > 0 {
		result += fmt.Sprintf("Acks:            %8d (%d timed out)\n", snap.Acks, snap.AckTimeouts)
	}

	result += fmt.Sprintf("Message Rate:    %8.1f msgs/sec\n", snap.MessageRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", snap.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.startTime.Store(time.Now().UnixNano())
	s.Received.Store(0)
	s.Dispatched.Store(0)
	s.Unhandled.Store(0)
	s.FramingOverflows.Store(0)
	s.Dropped.Store(0)
	s.IntegrityFailures.Store(0)
	s.DecodeMismatches.Store(0)
	s.Sent.Store(0)
	s.SendFailures.Store(0)
	s.Acks.Store(0)
	s.AckTimeouts.Store(0)
}
