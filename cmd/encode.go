// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/Thermoquad/herald/pkg/messenger"
	"github.com/spf13/cobra"
)

var encodeHex bool

var encodeCmd = &cobra.Command{
	Use:   "encode <id> [args...]",
	Short: "Print the wire bytes of a command without sending it",
	Long: `Compose a command offline and print its wire form, using the same
separators, escape character and CRC settings as the other commands.

` + argHelp + `

Escapes stay visible; non-printable bytes are shown as \xNN.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().BoolVarP(&encodeHex, "hex", "x", false, "Also print a hex dump")
}

// encodeCommand composes one command on an in-memory channel and returns
// the bytes that would be written
func encodeCommand(id uint8, args []commandArg, opts []messenger.Option) ([]byte, error) {
	ch := messenger.NewBufferChannel(nil)
	m, err := messenger.New(ch, append(opts, messenger.WithSendBufferSize(0))...)
	if err != nil {
		return nil, err
	}
	if _, err := sendCommand(m, id, args, false, false, 0); err != nil {
		return nil, err
	}
	return ch.Written(), nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	id, err := parseCommandID(args[0])
	if err != nil {
		return err
	}
	cmdArgs, err := parseCommandArgs(args[1:])
	if err != nil {
		return err
	}
	opts, err := messengerOptions()
	if err != nil {
		return err
	}
	sep, _ := separators()

	wire, err := encodeCommand(id, cmdArgs, opts)
	if err != nil {
		return err
	}

	fmt.Println(messenger.FormatWire(sep, wire))
	if encodeHex {
		fmt.Print(hex.Dump(wire))
	}
	return nil
}
