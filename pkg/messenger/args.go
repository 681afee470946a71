// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Typed argument readers. Each advances the cursor by one field. On failure
// the zero value is returned, ArgOK reports false and the error wraps
// ErrNoArgument, ErrInvalidArgument or ErrDecodeMismatch.

// nextText advances and returns the current field as trimmed text
func (m *Message) nextText() (string, error) {
	m.argOK = false
	if !m.Next() {
		return "", ErrNoArgument
	}
	return strings.Trim(string(m.token), " \t"), nil
}

func (m *Message) parseInt(bits int) (int64, error) {
	text, err := m.nextText()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(text, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	m.argOK = true
	return v, nil
}

// ReadInt16 reads a decimal int16 argument
func (m *Message) ReadInt16() (int16, error) {
	v, err := m.parseInt(16)
	return int16(v), err
}

// ReadInt32 reads a decimal int32 argument
func (m *Message) ReadInt32() (int32, error) {
	v, err := m.parseInt(32)
	return int32(v), err
}

// ReadInt64 reads a decimal int64 argument
func (m *Message) ReadInt64() (int64, error) {
	return m.parseInt(64)
}

// ReadUint8 reads a decimal uint8 argument
func (m *Message) ReadUint8() (uint8, error) {
	text, err := m.nextText()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(text, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	m.argOK = true
	return uint8(v), nil
}

// ReadBool reads a boolean argument: any nonzero integer is true, as are
// the strconv.ParseBool spellings
func (m *Message) ReadBool() (bool, error) {
	text, err := m.nextText()
	if err != nil {
		return false, err
	}
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		m.argOK = true
		return v != 0, nil
	}
	v, err := strconv.ParseBool(text)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	m.argOK = true
	return v, nil
}

// ReadChar reads the first byte of an argument
func (m *Message) ReadChar() (byte, error) {
	m.argOK = false
	if !m.Next() {
		return 0, ErrNoArgument
	}
	if len(m.token) == 0 {
		return 0, fmt.Errorf("%w: empty field", ErrInvalidArgument)
	}
	m.argOK = true
	return m.token[0], nil
}

// ReadFloat32 reads a decimal or scientific float32 argument
func (m *Message) ReadFloat32() (float32, error) {
	text, err := m.nextText()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(text, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	m.argOK = true
	return float32(v), nil
}

// ReadFloat64 reads a decimal or scientific float64 argument
func (m *Message) ReadFloat64() (float64, error) {
	text, err := m.nextText()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	m.argOK = true
	return v, nil
}

// ReadString reads an argument as a string
func (m *Message) ReadString() (string, error) {
	m.argOK = false
	if !m.Next() {
		return "", ErrNoArgument
	}
	m.argOK = true
	return string(m.token), nil
}

// ReadBytes reads an argument and returns a copy of its bytes
func (m *Message) ReadBytes() ([]byte, error) {
	m.argOK = false
	if !m.Next() {
		return nil, ErrNoArgument
	}
	out := make([]byte, len(m.token))
	copy(out, m.token)
	m.argOK = true
	return out, nil
}

// CopyString copies the next argument into dst, truncating to len(dst),
// and returns the number of bytes copied
func (m *Message) CopyString(dst []byte) int {
	m.argOK = false
	if !m.Next() {
		return 0
	}
	m.argOK = true
	return copy(dst, m.token)
}

// CompareString reports whether the next argument equals s
func (m *Message) CompareString(s string) bool {
	m.argOK = false
	if !m.Next() {
		return false
	}
	m.argOK = true
	return bytes.Equal(m.token, []byte(s))
}

// ReadBinArg reads a binary argument of type T. The decoded field must be
// exactly Width(T) bytes long.
func ReadBinArg[T Fixed](m *Message) (T, error) {
	var zero T
	m.argOK = false
	if !m.Next() {
		return zero, ErrNoArgument
	}
	v, err := DecodeFixed[T](m.token)
	if err != nil {
		m.stats.DecodeMismatches.Add(1)
		return zero, err
	}
	m.argOK = true
	return v, nil
}
