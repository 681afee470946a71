// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Thermoquad/herald/pkg/messenger"
)

type fileConfig struct {
	Port        string `toml:"port"`
	Baud        int    `toml:"baud"`
	URL         string `toml:"url"`
	Username    string `toml:"username"`
	NoSSLVerify bool   `toml:"no_ssl_verify"`

	CRC              string `toml:"crc"`
	FieldSeparator   string `toml:"field_separator"`
	CommandSeparator string `toml:"command_separator"`
	Escape           string `toml:"escape"`
	BufferSize       int    `toml:"buffer_size"`
	SendBufferSize   int    `toml:"send_buffer_size"`
	BinaryID         bool   `toml:"binary_id"`
	Newlines         bool   `toml:"newlines"`
	AckID            int    `toml:"ack_id"`
	AckTimeout       string `toml:"ack_timeout"`

	Debug   bool   `toml:"debug"`
	Metrics string `toml:"metrics"`

	meta toml.MetaData
}

// flagSet is the part of a cobra flag set the config file writes through
type flagSet interface {
	Changed(name string) bool
	Set(name, value string) error
}

func loadConfig(path string) (*fileConfig, error) {
	var cfg fileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}
	cfg.meta = meta
	return &cfg, nil
}

// apply copies every key defined in the file onto the matching flag, unless
// the flag was given on the command line
func (c *fileConfig) apply(flags flagSet) error {
	values := []struct {
		key   string
		flag  string
		value string
	}{
		{"port", "port", c.Port},
		{"baud", "baud", strconv.Itoa(c.Baud)},
		{"url", "url", c.URL},
		{"username", "username", c.Username},
		{"no_ssl_verify", "no-ssl-verify", strconv.FormatBool(c.NoSSLVerify)},
		{"crc", "crc", strings.TrimSpace(c.CRC)},
		{"field_separator", "field-sep", c.FieldSeparator},
		{"command_separator", "cmd-sep", c.CommandSeparator},
		{"escape", "escape", c.Escape},
		{"buffer_size", "buffer-size", strconv.Itoa(c.BufferSize)},
		{"send_buffer_size", "send-buffer-size", strconv.Itoa(c.SendBufferSize)},
		{"binary_id", "binary-id", strconv.FormatBool(c.BinaryID)},
		{"newlines", "newlines", strconv.FormatBool(c.Newlines)},
		{"ack_id", "ack-id", strconv.Itoa(c.AckID)},
		{"ack_timeout", "ack-timeout", strings.TrimSpace(c.AckTimeout)},
		{"debug", "debug", strconv.FormatBool(c.Debug)},
		{"metrics", "metrics", c.Metrics},
	}

	for _, v := range values {
		if !c.meta.IsDefined(v.key) || flags.Changed(v.flag) {
			continue
		}
		if err := flags.Set(v.flag, v.value); err != nil {
			return fmt.Errorf("%s: %w", v.key, err)
		}
	}
	return nil
}

// parseChar reads a framing character given as a single character, a C
// escape (\t, \n, \r, \0) or a 0xNN hex value
func parseChar(s string) (byte, error) {
	switch s {
	case `\t`:
		return '\t', nil
	case `\n`:
		return '\n', nil
	case `\r`:
		return '\r', nil
	case `\0`:
		return 0, nil
	}
	if len(s) == 1 {
		return s[0], nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid character %q: %w", s, err)
		}
		return byte(v), nil
	}
	return 0, fmt.Errorf("invalid character %q: expected one character, an escape or 0xNN", s)
}

// separators builds the framing character set from the flags
func separators() (messenger.Separators, error) {
	var sep messenger.Separators
	var err error
	if sep.Field, err = parseChar(fieldSep); err != nil {
		return sep, fmt.Errorf("--field-sep: %w", err)
	}
	if sep.Command, err = parseChar(commandSep); err != nil {
		return sep, fmt.Errorf("--cmd-sep: %w", err)
	}
	if sep.Escape, err = parseChar(escapeChar); err != nil {
		return sep, fmt.Errorf("--escape: %w", err)
	}
	return sep, sep.Validate()
}

// messengerOptions translates the protocol flags into messenger options
func messengerOptions() ([]messenger.Option, error) {
	sep, err := separators()
	if err != nil {
		return nil, err
	}
	poly, err := messenger.ParsePolynomial(crcName)
	if err != nil {
		return nil, fmt.Errorf("--crc: %w", err)
	}

	opts := []messenger.Option{
		messenger.WithSeparators(sep),
		messenger.WithPolynomial(poly),
		messenger.WithBufferSize(bufferSize),
		messenger.WithSendBufferSize(sendBufferSize),
		messenger.WithDefaultTimeout(ackTimeout),
	}
	if binaryID {
		opts = append(opts, messenger.WithBinaryID())
	}
	if newlines {
		opts = append(opts, messenger.WithNewlines())
	}
	if log != nil {
		opts = append(opts, messenger.WithLogger(log))
	}
	return opts, nil
}
