// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/herald/pkg/messenger"
	"github.com/spf13/cobra"
)

var (
	sendWaitAck  bool
	sendBuffered bool
	sendRepeat   int
	sendInterval time.Duration
	sendListen   time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send <id> [args...]",
	Short: "Send a command",
	Long: `Send one command to the device.

` + argHelp + `

With --wait-ack the command blocks until the peer replies with the
acknowledgment command (--ack-id) or --ack-timeout expires; the
acknowledgment is printed. With --listen, replies received within the
given duration are printed.

Examples:
  herald send -p /dev/ttyUSB0 5 hello int:-12 float:3.25
  herald send -p /dev/ttyUSB0 --crc ccitt --wait-ack 10 u16:1500
  herald send -p /dev/ttyUSB0 --buffered --repeat 4 7 hex:00ff`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().BoolVarP(&sendWaitAck, "wait-ack", "a", false, "Wait for the acknowledgment command")
	sendCmd.Flags().BoolVar(&sendBuffered, "buffered", false, "Stage commands and write them in one flush")
	sendCmd.Flags().IntVarP(&sendRepeat, "repeat", "n", 1, "Number of times to send the command")
	sendCmd.Flags().DurationVar(&sendInterval, "interval", 0, "Delay between repeated commands")
	sendCmd.Flags().DurationVar(&sendListen, "listen", 0, "Print replies received for this long after sending")
}

func runSend(cmd *cobra.Command, args []string) error {
	id, err := parseCommandID(args[0])
	if err != nil {
		return err
	}
	cmdArgs, err := parseCommandArgs(args[1:])
	if err != nil {
		return err
	}
	if sendRepeat < 1 {
		return fmt.Errorf("--repeat must be at least 1")
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("Connection: %s\n", s.info)

	for i := 0; i < sendRepeat; i++ {
		if i > 0 && sendInterval > 0 {
			time.Sleep(sendInterval)
		}

		ok, err := sendCommand(s.m, id, cmdArgs, sendBuffered, sendWaitAck, ackTimeout)
		if errors.Is(err, messenger.ErrAckTimeout) {
			fmt.Printf("CMD %d: no acknowledgment within %v\n", id, ackTimeout)
			return err
		}
		if err != nil {
			return fmt.Errorf("send command %d: %w", id, err)
		}
		if sendWaitAck && ok {
			fmt.Printf("ACK %s", messenger.FormatMessage(s.m.Current()))
		}
	}

	if sendBuffered {
		staged := s.m.Staged()
		if err := s.m.Flush(); err != nil {
			return fmt.Errorf("flush: %w", err)
		}
		if staged > 0 {
			fmt.Printf("Flushed %d bytes\n", staged)
		}
	}
	fmt.Printf("Sent %d command(s)\n", s.stats.Sent.Load())

	if sendListen > 0 {
		s.m.AttachDefault(func(msg *messenger.Message) {
			fmt.Print(messenger.FormatMessage(msg))
		})
		ctx, cancel := context.WithTimeout(context.Background(), sendListen)
		defer cancel()
		if err := s.run(ctx, nil); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, io.EOF) {
			return err
		}
	}
	return nil
}
