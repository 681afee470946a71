// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import "fmt"

// Separators holds the three reserved framing characters.
type Separators struct {
	Field   byte
	Command byte
	Escape  byte
}

// DefaultSeparators returns the ',' ';' '/' character set.
func DefaultSeparators() Separators {
	return Separators{
		Field:   DefaultFieldSeparator,
		Command: DefaultCommandSeparator,
		Escape:  DefaultEscapeCharacter,
	}
}

// Validate checks that the three characters are distinct and are not
// line terminators (those are skipped at message start).
func (s Separators) Validate() error {
	if s.Field == s.Command || s.Field == s.Escape || s.Command == s.Escape {
		return fmt.Errorf("%w: field=%q command=%q escape=%q must be distinct",
			ErrInvalidSeparators, s.Field, s.Command, s.Escape)
	}
	for _, b := range []byte{s.Field, s.Escape} {
		if b == '\r' || b == '\n' {
			return fmt.Errorf("%w: %q cannot be a field separator or escape character", ErrInvalidSeparators, b)
		}
	}
	return nil
}

// IsReserved reports whether b must be escaped inside a field.
func (s Separators) IsReserved(b byte) bool {
	return b == s.Field || b == s.Command || b == s.Escape
}

// AppendEscaped appends b to dst, preceded by the escape character when b is
// reserved.
func (s Separators) AppendEscaped(dst []byte, b byte) []byte {
	if s.IsReserved(b) {
		dst = append(dst, s.Escape)
	}
	return append(dst, b)
}

// EscapeBytes returns the wire-safe form of data.
func (s Separators) EscapeBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)
	for _, b := range data {
		result = s.AppendEscaped(result, b)
	}
	return result
}

// UnescapeInPlace decodes an escaped field in place and returns the decoded
// length. An escape character makes the following byte literal; a trailing
// escape character with nothing after it is kept as a literal.
func (s Separators) UnescapeInPlace(field []byte) int {
	w := 0
	escapeNext := false
	for r := 0; r < len(field); r++ {
		b := field[r]
		if !escapeNext && b == s.Escape && r+1 < len(field) {
			escapeNext = true
			continue
		}
		field[w] = b
		w++
		escapeNext = false
	}
	return w
}

// Unescape returns a decoded copy of data.
func (s Separators) Unescape(data []byte) []byte {
	result := make([]byte, len(data))
	copy(result, data)
	return result[:s.UnescapeInPlace(result)]
}
