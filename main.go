// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Herald - Command Messenger
//
// A CLI tool for sending, receiving and analyzing text-framed commands
// over serial ports and WebSocket bridges.

package main

import (
	"os"

	"github.com/Thermoquad/herald/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
