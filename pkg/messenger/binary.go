// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"encoding/binary"
	"fmt"
)

// ByteOrder is the byte order of binary arguments and check values.
var ByteOrder binary.ByteOrder = binary.LittleEndian

// Fixed is the set of primitive types that travel as binary arguments.
// Each value is sent as exactly Width bytes in ByteOrder; bool is one byte.
type Fixed interface {
	~bool |
		~int8 | ~uint8 |
		~int16 | ~uint16 |
		~int32 | ~uint32 |
		~int64 | ~uint64 |
		~float32 | ~float64
}

// Width returns the wire width of v in bytes
func Width[T Fixed](v T) int {
	return binary.Size(v)
}

// AppendFixed appends the binary form of v to dst
func AppendFixed[T Fixed](dst []byte, v T) []byte {
	out, err := binary.Append(dst, ByteOrder, v)
	if err != nil {
		// Unreachable for the Fixed type set
		panic(fmt.Sprintf("messenger: append %T: %v", v, err))
	}
	return out
}

// DecodeFixed decodes a value from src, which must be exactly Width bytes
func DecodeFixed[T Fixed](src []byte) (T, error) {
	var v T
	if want := Width(v); len(src) != want {
		return v, fmt.Errorf("%w: %T needs %d bytes, field has %d", ErrDecodeMismatch, v, want, len(src))
	}
	if _, err := binary.Decode(src, ByteOrder, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrDecodeMismatch, err)
	}
	return v, nil
}
