// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// FormatMessage formats a received message into a human-readable line.
// The remaining arguments are consumed.
func FormatMessage(m *Message) string {
	timestamp := m.Timestamp().Format("15:04:05.000")

	id := "?"
	if m.IDOK() {
		id = strconv.Itoa(int(m.CommandID()))
	}

	var flags []string
	if m.Truncated() {
		flags = append(flags, "TRUNCATED")
	}
	if m.IntegrityFailed() {
		flags = append(flags, fmt.Sprintf("CRC_FAIL(0x%04X)", m.CheckValue()))
	}

	fields := m.Rest()
	args := make([]string, len(fields))
	for i, f := range fields {
		args[i] = FormatField(f)
	}

	result := fmt.Sprintf("[%s] CMD %s len=%d args=[%s]", timestamp, id, m.Len(), strings.Join(args, ", "))
	if len(flags) > 0 {
		result += " " + strings.Join(flags, " ")
	}
	return result + "\n"
}

// FormatField renders a decoded argument: quoted when it is printable text,
// hex otherwise
func FormatField(field []byte) string {
	for _, b := range field {
		if b < 0x20 || b > 0x7E {
			return "0x" + strings.ToUpper(hex.EncodeToString(field))
		}
	}
	return strconv.Quote(string(field))
}

// FormatWire renders raw wire bytes with separators and escapes visible and
// non-printable bytes as \xNN
func FormatWire(sep Separators, wire []byte) string {
	var sb strings.Builder
	escapeNext := false
	for _, b := range wire {
		switch {
		case escapeNext:
			escapeNext = false
			writeWireByte(&sb, b)
		case b == sep.Escape:
			escapeNext = true
			sb.WriteByte(b)
		case b == '\r':
			sb.WriteString(`\r`)
		case b == '\n':
			sb.WriteString(`\n`)
		default:
			writeWireByte(&sb, b)
		}
	}
	return sb.String()
}

func writeWireByte(sb *strings.Builder, b byte) {
	if b < 0x20 || b > 0x7E {
		fmt.Fprintf(sb, `\x%02X`, b)
		return
	}
	sb.WriteByte(b)
}
