// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/herald/pkg/messenger"
	"github.com/spf13/cobra"
)

var (
	pingID       uint8
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping [args...]",
	Short: "Measure acknowledgment round trips",
	Long: `Send a command and wait for the acknowledgment command, repeatedly,
reporting the round-trip time of each and a summary.

The command identifier is set with --id; the acknowledgment identifier and
timeout come from --ack-id and --ack-timeout. Optional arguments use the
same syntax as send.

This is useful for verifying:
  - The link is established in both directions
  - Separators and CRC settings match the peer
  - The peer answers within the expected time

Exit codes:
  0 - All pings acknowledged
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().Uint8Var(&pingID, "id", 0, "Command identifier to send")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", 100*time.Millisecond, "Delay between pings")
}

// rttSummary collects round-trip times
type rttSummary struct {
	sent  int
	times []time.Duration
}

func (r *rttSummary) add(rtt time.Duration) {
	r.times = append(r.times, rtt)
}

func (r *rttSummary) loss() float64 {
	if r.sent == 0 {
		return 0
	}
	return float64(r.sent-len(r.times)) / float64(r.sent) * 100
}

func (r *rttSummary) String() string {
	var s strings.Builder
	fmt.Fprintf(&s, "%d pings sent, %d acknowledged, %.0f%% loss\n", r.sent, len(r.times), r.loss())
	if len(r.times) == 0 {
		return s.String()
	}

	lo, hi, total := r.times[0], r.times[0], time.Duration(0)
	for _, t := range r.times {
		lo = min(lo, t)
		hi = max(hi, t)
		total += t
	}
	avg := total / time.Duration(len(r.times))
	fmt.Fprintf(&s, "rtt min/avg/max = %v/%v/%v\n",
		lo.Round(time.Microsecond), avg.Round(time.Microsecond), hi.Round(time.Microsecond))
	return s.String()
}

func runPing(cmd *cobra.Command, args []string) error {
	cmdArgs, err := parseCommandArgs(args)
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	fmt.Printf("Herald - Ping\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Command %d, acknowledgment %d, timeout %v\n\n", pingID, ackID, ackTimeout)

	summary := &rttSummary{}
	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)
		summary.sent++

		start := time.Now()
		ok, err := sendCommand(s.m, pingID, cmdArgs, false, true, ackTimeout)
		rtt := time.Since(start)

		switch {
		case errors.Is(err, messenger.ErrAckTimeout):
			fmt.Printf("TIMEOUT (no acknowledgment in %v)\n", ackTimeout)
		case err != nil:
			fmt.Printf("SEND FAILED: %v\n", err)
		case ok:
			ack := s.m.Current()
			fields := make([]string, 0)
			for _, f := range ack.Rest() {
				fields = append(fields, messenger.FormatField(f))
			}
			fmt.Printf("ACK args=[%s] rtt=%v\n", strings.Join(fields, ", "), rtt.Round(time.Microsecond))
			summary.add(rtt)
		}

		if s.ch.Closed() {
			fmt.Println("Connection closed")
			break
		}

		// Small delay between pings
		if i < pingCount && pingInterval > 0 {
			time.Sleep(pingInterval)
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Print(summary.String())

	if len(summary.times) < summary.sent {
		os.Exit(1)
	}
	return nil
}
