// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package messenger implements a text-oriented, binary-safe command protocol
// for serial links.
//
// A command is an identifier followed by zero or more arguments, separated by
// a field separator and terminated by a command separator:
//
//	<id>[,<arg>]*[,<crc16>];
//
// Reserved bytes inside arguments are preceded by an escape character, so
// arbitrary binary values can travel in a field. An optional CRC-16 check
// value is appended as a trailing field. A sender may block until the peer
// replies with a designated acknowledgment command.
package messenger

import "time"

// Default framing characters
const (
	DefaultFieldSeparator   = ','
	DefaultCommandSeparator = ';'
	DefaultEscapeCharacter  = '/'
)

// Buffer and table limits
const (
	DefaultBufferSize     = 64  // Command buffer (one incoming message)
	DefaultSendBufferSize = 512 // Staging buffer for buffered sends
	MinBufferSize         = 4
	MaxHandlers           = 50
)

// Acknowledgment defaults
const (
	DefaultAckID        = 1
	DefaultTimeout      = 5000 * time.Millisecond
	DefaultPollInterval = time.Millisecond
)

// State is the parser state for the message being received.
type State int

// Parser states
const (
	StateAccumulating State = iota
	StateMessageComplete
	StateArgumentsInProgress
)

// String returns the human-readable state name
func (s State) String() string {
	switch s {
	case StateAccumulating:
		return "ACCUMULATING"
	case StateMessageComplete:
		return "MESSAGE_COMPLETE"
	case StateArgumentsInProgress:
		return "ARGUMENTS_IN_PROGRESS"
	default:
		return "UNKNOWN"
	}
}
