// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"fmt"
	"strings"

	"github.com/sigurn/crc16"
)

// Polynomial selects the CRC-16 variant used for check values.
type Polynomial int

// Supported CRC-16 variants
const (
	PolyNone Polynomial = iota
	PolyCCITT
	PolyMCRF4XX
	PolyKermit
	PolyModbus
	PolyXModem
	PolyX25
)

// String returns the variant name
func (p Polynomial) String() string {
	switch p {
	case PolyNone:
		return "none"
	case PolyCCITT:
		return "ccitt"
	case PolyMCRF4XX:
		return "mcrf4xx"
	case PolyKermit:
		return "kermit"
	case PolyModbus:
		return "modbus"
	case PolyXModem:
		return "xmodem"
	case PolyX25:
		return "x25"
	default:
		return fmt.Sprintf("polynomial(%d)", int(p))
	}
}

// ParsePolynomial maps a variant name to a Polynomial
func ParsePolynomial(name string) (Polynomial, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "off":
		return PolyNone, nil
	case "ccitt":
		return PolyCCITT, nil
	case "mcrf4xx":
		return PolyMCRF4XX, nil
	case "kermit":
		return PolyKermit, nil
	case "modbus":
		return PolyModbus, nil
	case "xmodem":
		return PolyXModem, nil
	case "x25", "x.25":
		return PolyX25, nil
	default:
		return PolyNone, fmt.Errorf("unknown CRC polynomial %q", name)
	}
}

var crcVariants = map[Polynomial]crc16.Params{
	PolyCCITT:   crc16.CRC16_CCITT_FALSE,
	PolyMCRF4XX: crc16.CRC16_MCRF4XX,
	PolyKermit:  crc16.CRC16_KERMIT,
	PolyModbus:  crc16.CRC16_MODBUS,
	PolyXModem:  crc16.CRC16_XMODEM,
	PolyX25:     crc16.CRC16_X_25,
}

var crcTables = func() map[Polynomial]*crc16.Table {
	tables := make(map[Polynomial]*crc16.Table, len(crcVariants))
	for p, params := range crcVariants {
		tables[p] = crc16.MakeTable(params)
	}
	return tables
}()

// CRC is an incremental CRC-16 accumulator. The zero value and PolyNone
// accumulate nothing and always sum to 0.
type CRC struct {
	poly  Polynomial
	table *crc16.Table
	state uint16 // register before final reflection and xor
	one   [1]byte
}

// NewCRC creates an accumulator for the given variant, already reset
func NewCRC(p Polynomial) *CRC {
	c := &CRC{poly: p, table: crcTables[p]}
	c.Reset()
	return c
}

// Polynomial returns the configured variant
func (c *CRC) Polynomial() Polynomial {
	return c.poly
}

// Enabled reports whether check values are produced
func (c *CRC) Enabled() bool {
	return c.table != nil
}

// Reset restarts accumulation
func (c *CRC) Reset() {
	if c.table == nil {
		c.state = 0
		return
	}
	c.state = crc16.Init(c.table)
}

// UpdateByte feeds one byte and returns the running check value
func (c *CRC) UpdateByte(b byte) uint16 {
	if c.table == nil {
		return 0
	}
	c.one[0] = b
	c.state = crc16.Update(c.state, c.one[:], c.table)
	return crc16.Complete(c.state, c.table)
}

// Update feeds data and returns the running check value
func (c *CRC) Update(data []byte) uint16 {
	if c.table == nil {
		return 0
	}
	c.state = crc16.Update(c.state, data, c.table)
	return crc16.Complete(c.state, c.table)
}

// Sum returns the check value of everything fed since the last Reset
func (c *CRC) Sum() uint16 {
	if c.table == nil {
		return 0
	}
	return crc16.Complete(c.state, c.table)
}

// Checksum computes the check value of data in one call
func Checksum(p Polynomial, data []byte) uint16 {
	return NewCRC(p).Update(data)
}
