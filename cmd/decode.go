// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/herald/pkg/messenger"
	"github.com/spf13/cobra"
)

var decodeHex bool

var decodeCmd = &cobra.Command{
	Use:   "decode <wire>",
	Short: "Parse wire bytes offline and print each message",
	Long: `Feed captured wire bytes through the parser and print every completed
message, including truncated and CRC-failed ones.

The input is a string with Go escapes (\r, \n, \xNN), or hex with --hex.

Examples:
  herald decode '5,hello;6,1/,2;'
  herald decode --crc ccitt --hex 352c78`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVarP(&decodeHex, "hex", "x", false, "Input is hex encoded")
}

// decodeInput turns the command-line input into raw bytes
func decodeInput(s string, isHex bool) ([]byte, error) {
	if isHex {
		data, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("invalid hex input: %w", err)
		}
		return data, nil
	}
	unquoted, err := strconv.Unquote(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`)
	if err != nil {
		return nil, fmt.Errorf("invalid escape in input: %w", err)
	}
	return []byte(unquoted), nil
}

// lineDecoder turns received bytes into printable lines: one per message,
// including truncated and CRC-failed ones, plus one per dropped message
type lineDecoder struct {
	p *messenger.Parser
}

func newLineDecoder(opts []messenger.Option) (*lineDecoder, error) {
	p, err := messenger.NewParser(opts...)
	if err != nil {
		return nil, err
	}
	return &lineDecoder{p: p}, nil
}

// feed processes one byte and returns any completed lines
func (d *lineDecoder) feed(b byte) []string {
	var lines []string
	state, err := d.p.Feed(b)
	if err != nil && !errors.Is(err, messenger.ErrFramingOverflow) {
		lines = append(lines, fmt.Sprintf("! %v\n", err))
	}
	if state != messenger.StateMessageComplete {
		return lines
	}
	msg, _ := d.p.Begin()
	if msg != nil && msg.Len() > 0 {
		lines = append(lines, messenger.FormatMessage(msg))
	}
	return lines
}

// decodeWire parses captured bytes and returns the formatted lines
func decodeWire(wire []byte, opts []messenger.Option) ([]string, error) {
	d, err := newLineDecoder(opts)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, b := range wire {
		lines = append(lines, d.feed(b)...)
	}
	if n := d.p.Buffered(); n > 0 {
		lines = append(lines, fmt.Sprintf("! %d bytes without a command separator\n", n))
	}
	return lines, nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	wire, err := decodeInput(args[0], decodeHex)
	if err != nil {
		return err
	}
	opts, err := messengerOptions()
	if err != nil {
		return err
	}

	lines, err := decodeWire(wire, opts)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Print(line)
	}
	return nil
}
