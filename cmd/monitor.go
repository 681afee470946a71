// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/herald/pkg/messenger"
	"github.com/spf13/cobra"
)

var (
	monitorTUI           bool
	monitorStatsInterval int
	monitorShowWire      bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display received commands in human-readable format",
	Long: `Continuously parse and display commands as they arrive.

Every completed message is printed with its identifier, decoded arguments
and flags for truncation (TRUNCATED) and check value mismatches (CRC_FAIL).
Statistics are printed periodically and on exit.

With --tui, a live view shows statistics and recent events, and commands can
be typed and sent from an input line.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorTUI, "tui", false, "Use the interactive terminal UI")
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 10, "Statistics display interval in seconds (0 disables)")
	monitorCmd.Flags().BoolVar(&monitorShowWire, "wire", false, "Also print the raw bytes of each chunk read")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorTUI {
		return runMonitorTUI()
	}

	opts, err := messengerOptions()
	if err != nil {
		return err
	}
	sep, _ := separators()

	stats := messenger.NewStatistics()
	decoder, err := newLineDecoder(append(opts, messenger.WithStatistics(stats)))
	if err != nil {
		return err
	}

	// Open connection (serial or WebSocket)
	ch, connInfo, err := openChannel(sep)
	if err != nil {
		return err
	}
	defer ch.Close()
	serveMetrics(stats, connInfo)

	fmt.Printf("Herald - Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var ticker <-chan time.Time
	if monitorStatsInterval > 0 {
		t := time.NewTicker(time.Duration(monitorStatsInterval) * time.Second)
		defer t.Stop()
		ticker = t.C
	}

	var chunk []byte
	for {
		for ch.Available() {
			b, err := ch.ReadByte()
			if err != nil {
				break
			}
			if monitorShowWire {
				chunk = append(chunk, b)
			}
			for _, line := range decoder.feed(b) {
				fmt.Print(line)
			}
		}
		if len(chunk) > 0 {
			fmt.Printf("  wire: %s\n", messenger.FormatWire(sep, chunk))
			chunk = chunk[:0]
		}

		if ch.Closed() {
			fmt.Print(stats.String())
			if err := ch.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, ErrConnectionClosed) {
				return err
			}
			fmt.Println("Connection closed")
			return nil
		}

		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Print(stats.String())
			return nil
		case <-ticker:
			fmt.Print(stats.String())
		case <-time.After(pollInterval):
		}
	}
}
