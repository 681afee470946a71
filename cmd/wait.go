// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/herald/pkg/messenger"
	"github.com/spf13/cobra"
)

var (
	waitTimeout time.Duration
	waitForID   int
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Test connection by waiting for a valid command",
	Long: `Wait for a valid command on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any intact
command (or only the identifier given with --for). Truncated and CRC-failed
messages are ignored.

Exit codes:
  0 - Command received before timeout
  1 - Timeout reached without receiving a valid command
  2 - Connection error`,
	RunE: runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().DurationVar(&waitTimeout, "timeout", 10*time.Second, "How long to wait for a command")
	waitCmd.Flags().IntVar(&waitForID, "for", -1, "Only accept this command identifier")
}

func runWait(cmd *cobra.Command, args []string) error {
	if waitForID > 255 {
		return fmt.Errorf("--for must be 0-255")
	}

	// Open connection (serial or WebSocket)
	s, err := openSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	fmt.Printf("Herald - Wait\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Timeout: %v\n", waitTimeout)
	fmt.Printf("Waiting for valid command...\n\n")

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	var got string
	var gotID uint8
	s.m.AttachDefault(func(msg *messenger.Message) {
		if got != "" || !msg.IDOK() {
			return
		}
		if waitForID >= 0 && int(msg.CommandID()) != waitForID {
			return
		}
		gotID = msg.CommandID()
		got = messenger.FormatMessage(msg)
		cancel()
	})

	err = s.run(ctx, nil)
	if got != "" {
		fmt.Printf("SUCCESS: Received command %d\n", gotID)
		fmt.Print(got)
		if skipped := s.stats.Snapshot().Errors(); skipped > 0 {
			fmt.Printf("(ignored %d damaged messages)\n", skipped)
		}
		os.Exit(0)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid command received within %v\n", waitTimeout)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
	os.Exit(2)
	return nil
}
