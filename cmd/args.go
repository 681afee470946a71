// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/herald/pkg/messenger"
)

const argHelp = `Arguments are sent as text unless prefixed with a type:

  Text:    str:<s>  int:<n>  uint:<n>  float:<f>  sci:<f>  bool:<b>  char:<c>
  Binary:  i8: u8: i16: u16: i32: u32: i64: u64: f32: f64: b8:<value>
  Raw:     hex:<hex bytes>
  CBOR:    cbor:<json value>

Binary values are little-endian; reserved bytes are escaped on the wire.
An argument with an unknown prefix (e.g. a URL) is sent as text.`

// commandArg appends one argument to the command in progress
type commandArg func(m *messenger.Messenger) error

// parseCommandID parses a command identifier in decimal or 0x hex
func parseCommandID(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid command id %q: must be 0-255", s)
	}
	return uint8(v), nil
}

// parseCommandArgs parses every argument before anything is sent, so a typo
// never produces a partial command
func parseCommandArgs(fields []string) ([]commandArg, error) {
	args := make([]commandArg, 0, len(fields))
	for i, s := range fields {
		a, err := parseCommandArg(s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		args = append(args, a)
	}
	return args, nil
}

func parseCommandArg(s string) (commandArg, error) {
	kind, value, found := strings.Cut(s, ":")
	if !found {
		return textArg(s), nil
	}

	switch kind {
	case "str", "s":
		return textArg(value), nil

	case "int":
		v, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("int %q: %w", value, err)
		}
		return func(m *messenger.Messenger) error { m.ArgInt(v); return m.Err() }, nil

	case "uint":
		v, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("uint %q: %w", value, err)
		}
		return func(m *messenger.Messenger) error { m.ArgUint(v); return m.Err() }, nil

	case "float", "sci":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", kind, value, err)
		}
		if kind == "sci" {
			return func(m *messenger.Messenger) error { m.ArgSci(f, -1); return m.Err() }, nil
		}
		return func(m *messenger.Messenger) error { m.ArgFloat(f, -1); return m.Err() }, nil

	case "bool":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("bool %q: %w", value, err)
		}
		return func(m *messenger.Messenger) error { m.ArgBool(v); return m.Err() }, nil

	case "char":
		c, err := parseChar(value)
		if err != nil {
			return nil, err
		}
		return func(m *messenger.Messenger) error { m.ArgChar(c); return m.Err() }, nil

	case "hex":
		data, err := hex.DecodeString(strings.ReplaceAll(value, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("hex %q: %w", value, err)
		}
		return func(m *messenger.Messenger) error { m.ArgBytes(data); return m.Err() }, nil

	case "cbor":
		v, err := parseJSON(value)
		if err != nil {
			return nil, fmt.Errorf("cbor %q: %w", value, err)
		}
		return func(m *messenger.Messenger) error { return m.AddCBORArg(v) }, nil

	case "i8", "i16", "i32", "i64":
		bits, _ := strconv.Atoi(kind[1:])
		v, err := strconv.ParseInt(value, 0, bits)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", kind, value, err)
		}
		return signedArg(bits, v), nil

	case "u8", "u16", "u32", "u64":
		bits, _ := strconv.Atoi(kind[1:])
		v, err := strconv.ParseUint(value, 0, bits)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", kind, value, err)
		}
		return unsignedArg(bits, v), nil

	case "f32", "f64":
		bits, _ := strconv.Atoi(kind[1:])
		f, err := strconv.ParseFloat(value, bits)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", kind, value, err)
		}
		if bits == 32 {
			return binArg(float32(f)), nil
		}
		return binArg(f), nil

	case "b8":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("b8 %q: %w", value, err)
		}
		return binArg(v), nil
	}

	return textArg(s), nil
}

func textArg(s string) commandArg {
	return func(m *messenger.Messenger) error {
		m.ArgString(s)
		return m.Err()
	}
}

func binArg[T messenger.Fixed](v T) commandArg {
	return func(m *messenger.Messenger) error {
		messenger.AddBinArg(m, v)
		return m.Err()
	}
}

func signedArg(bits int, v int64) commandArg {
	switch bits {
	case 8:
		return binArg(int8(v))
	case 16:
		return binArg(int16(v))
	case 32:
		return binArg(int32(v))
	default:
		return binArg(v)
	}
}

func unsignedArg(bits int, v uint64) commandArg {
	switch bits {
	case 8:
		return binArg(uint8(v))
	case 16:
		return binArg(uint16(v))
	case 32:
		return binArg(uint32(v))
	default:
		return binArg(v)
	}
}

// parseJSON decodes a JSON value, keeping integers as integers so they
// encode as CBOR integers rather than floats
func parseJSON(s string) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return normalizeJSON(v), nil
}

func normalizeJSON(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []interface{}:
		for i := range t {
			t[i] = normalizeJSON(t[i])
		}
		return t
	case map[string]interface{}:
		for k, e := range t {
			t[k] = normalizeJSON(e)
		}
		return t
	default:
		return v
	}
}

// sendCommand composes id and args on m and ends it, waiting for an
// acknowledgment when requireAck is set
func sendCommand(m *messenger.Messenger, id uint8, args []commandArg, buffered, requireAck bool, timeout time.Duration) (bool, error) {
	var err error
	if buffered {
		err = m.StartBuffered(id)
	} else {
		err = m.Start(id)
	}
	if err != nil {
		return false, err
	}

	for _, a := range args {
		if err := a(m); err != nil {
			// Unbuffered bytes are already on the wire; terminate the frame
			if buffered {
				m.Discard()
			} else {
				m.End(false, 0, 0)
			}
			return false, err
		}
	}
	return m.End(requireAck, ackID, timeout)
}
