// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import "errors"

var (
	ErrFramingOverflow     = errors.New("messenger: command buffer overflow")
	ErrMessageDropped      = errors.New("messenger: unclaimed message dropped")
	ErrIntegrityFailure    = errors.New("messenger: check value mismatch")
	ErrNoMessage           = errors.New("messenger: no complete message")
	ErrNoArgument          = errors.New("messenger: no argument left")
	ErrDecodeMismatch      = errors.New("messenger: argument width mismatch")
	ErrInvalidArgument     = errors.New("messenger: invalid argument")
	ErrSendBufferExhausted = errors.New("messenger: send buffer exhausted")
	ErrAckTimeout          = errors.New("messenger: acknowledgment timeout")
	ErrNotStarted          = errors.New("messenger: no command in progress")
	ErrCommandInProgress   = errors.New("messenger: command already in progress")
	ErrHandlerTableFull    = errors.New("messenger: handler table full")
	ErrNoData              = errors.New("messenger: no data available")
	ErrInvalidSeparators   = errors.New("messenger: invalid separators")
)
