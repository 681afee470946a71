// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/loopholelabs/logging"
	"github.com/loopholelabs/logging/types"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Protocol flags
	crcName        string
	fieldSep       string
	commandSep     string
	escapeChar     string
	bufferSize     int
	sendBufferSize int
	binaryID       bool
	newlines       bool
	ackID          uint8
	ackTimeout     time.Duration

	// Runtime flags
	configFile  string
	debug       bool
	metricsAddr string

	log types.Logger
)

var rootCmd = &cobra.Command{
	Use:   "herald",
	Short: "Command messenger for serial and WebSocket links",
	Long: `Herald - A CLI tool for sending, receiving and analyzing messenger commands.

Commands are framed as <id>[,<arg>]*[,<crc16>]; with '/' escaping reserved
bytes inside arguments. Separators, escape character and CRC-16 variant are
configurable and must match the peer.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the HERALD_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings may also be read from a TOML file given with --config. Flags set on
the command line take precedence over the file.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Protocol flags
	rootCmd.PersistentFlags().StringVar(&crcName, "crc", "none", "CRC-16 variant (none, ccitt, mcrf4xx, kermit, modbus, xmodem, x25)")
	rootCmd.PersistentFlags().StringVar(&fieldSep, "field-sep", ",", "Field separator character")
	rootCmd.PersistentFlags().StringVar(&commandSep, "cmd-sep", ";", "Command separator character")
	rootCmd.PersistentFlags().StringVar(&escapeChar, "escape", "/", "Escape character")
	rootCmd.PersistentFlags().IntVar(&bufferSize, "buffer-size", 64, "Receive command buffer size in bytes")
	rootCmd.PersistentFlags().IntVar(&sendBufferSize, "send-buffer-size", 512, "Buffered send staging size in bytes (0 disables)")
	rootCmd.PersistentFlags().BoolVar(&binaryID, "binary-id", false, "Command identifier is one raw byte")
	rootCmd.PersistentFlags().BoolVar(&newlines, "newlines", false, "Append \\r\\n after every sent command")
	rootCmd.PersistentFlags().Uint8Var(&ackID, "ack-id", 1, "Acknowledgment command identifier")
	rootCmd.PersistentFlags().DurationVar(&ackTimeout, "ack-timeout", 5*time.Second, "Acknowledgment timeout")

	// Runtime flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address (e.g. :2112)")
}

// setup loads the config file and creates the logger before any command runs
func setup(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		cfg, err := loadConfig(configFile)
		if err != nil {
			return err
		}
		if err := cfg.apply(cmd.Flags()); err != nil {
			return fmt.Errorf("config %s: %w", configFile, err)
		}
	}

	l := logging.New(logging.Zerolog, "herald", os.Stderr)
	if debug {
		l.SetLevel(types.TraceLevel)
	} else {
		l.SetLevel(types.InfoLevel)
	}
	log = l
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
