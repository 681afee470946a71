// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Structured arguments travel as CBOR-encoded binary fields; escaping makes
// them safe inside the text framing.

// AddCBORArg encodes v as CBOR and sends it as one binary argument
func (m *Messenger) AddCBORArg(v interface{}) error {
	if !m.inProgress {
		return ErrNotStarted
	}
	data, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode CBOR argument: %w", err)
	}
	m.ArgBytes(data)
	return m.sendErr
}

// ReadCBORArg decodes the next argument as CBOR into v
func (m *Message) ReadCBORArg(v interface{}) error {
	m.argOK = false
	if !m.Next() {
		return ErrNoArgument
	}
	if err := cbor.Unmarshal(m.token, v); err != nil {
		m.stats.DecodeMismatches.Add(1)
		return fmt.Errorf("%w: failed to decode CBOR: %v", ErrDecodeMismatch, err)
	}
	m.argOK = true
	return nil
}
