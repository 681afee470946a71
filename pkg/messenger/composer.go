// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"fmt"
	"strconv"
	"time"
)

// Composer: Start or StartBuffered, any number of Arg calls, then End.
//
// Arg calls outside a command are no-ops. A write failure is sticky for the
// rest of the command and reported by End (and by Err). In buffered mode the
// command is staged in the send buffer and reaches the channel on Flush, or
// at End when an acknowledgment is requested. Flush staged commands before
// sending directly to keep them in order.

// Start begins a command written directly to the channel. A command
// already in progress is left untouched. When the identifier cannot be
// written no command is in progress afterwards.
func (m *Messenger) Start(id uint8) error {
	if m.inProgress {
		return ErrCommandInProgress
	}
	m.buffered = false
	return m.begin(id)
}

// StartBuffered begins a command staged in the send buffer
func (m *Messenger) StartBuffered(id uint8) error {
	if m.inProgress {
		return ErrCommandInProgress
	}
	if m.sendBuf == nil {
		return fmt.Errorf("%w: send buffer disabled", ErrSendBufferExhausted)
	}
	if m.sendBuf.Exhausted() {
		return fmt.Errorf("%w: discard before reuse", ErrSendBufferExhausted)
	}
	m.buffered = true
	return m.begin(id)
}

// begin writes the identifier and abandons the command if that fails
func (m *Messenger) begin(id uint8) error {
	m.inProgress = true
	m.sendErr = nil
	m.crc.Reset()

	m.scratch = m.scratch[:0]
	if m.binaryID {
		// Line terminators are skipped at message start unless escaped
		if m.sep.IsReserved(id) || id == '\r' || id == '\n' {
			m.scratch = append(m.scratch, m.sep.Escape)
		}
		m.scratch = append(m.scratch, id)
		m.crc.UpdateByte(id)
	} else {
		m.scratch = strconv.AppendUint(m.scratch, uint64(id), 10)
		m.crc.Update(m.scratch)
	}
	m.emit()

	if err := m.sendErr; err != nil {
		m.stats.SendFailures.Add(1)
		m.inProgress = false
		m.buffered = false
		m.sendErr = nil
		return err
	}
	return nil
}

// field writes a field separator followed by the escaped raw value
func (m *Messenger) field(raw []byte) {
	if !m.inProgress {
		return
	}
	m.crc.UpdateByte(m.sep.Field)
	m.crc.Update(raw)

	m.scratch = append(m.scratch[:0], m.sep.Field)
	for _, b := range raw {
		m.scratch = m.sep.AppendEscaped(m.scratch, b)
	}
	m.emit()
}

// emit sends the scratch bytes to the channel or the send buffer
func (m *Messenger) emit() {
	if m.sendErr != nil {
		return
	}
	if m.buffered {
		if !m.sendBuf.Append(m.scratch) {
			m.sendErr = fmt.Errorf("%w: %d of %d bytes staged", ErrSendBufferExhausted, m.sendBuf.Len(), m.sendBuf.Cap())
		}
		return
	}
	var err error
	if len(m.scratch) == 1 {
		err = m.ch.WriteByte(m.scratch[0])
	} else {
		_, err = m.ch.Write(m.scratch)
	}
	if err != nil {
		m.sendErr = fmt.Errorf("messenger: write failed: %w", err)
	}
}

// text formats a value into a temporary buffer and writes it as a field
func (m *Messenger) text(format func([]byte) []byte) {
	if !m.inProgress {
		return
	}
	var tmp [32]byte
	m.field(format(tmp[:0]))
}

// ArgString sends s as one argument
func (m *Messenger) ArgString(s string) {
	if !m.inProgress {
		return
	}
	m.field([]byte(s))
}

// ArgBytes sends b as one argument
func (m *Messenger) ArgBytes(b []byte) {
	m.field(b)
}

// ArgChar sends a single character
func (m *Messenger) ArgChar(c byte) {
	var tmp [1]byte
	tmp[0] = c
	m.field(tmp[:])
}

// ArgInt sends a decimal integer
func (m *Messenger) ArgInt(v int64) {
	m.text(func(dst []byte) []byte { return strconv.AppendInt(dst, v, 10) })
}

// ArgUint sends a decimal unsigned integer
func (m *Messenger) ArgUint(v uint64) {
	m.text(func(dst []byte) []byte { return strconv.AppendUint(dst, v, 10) })
}

// ArgBool sends 1 or 0
func (m *Messenger) ArgBool(v bool) {
	if v {
		m.field([]byte{'1'})
	} else {
		m.field([]byte{'0'})
	}
}

// ArgFloat sends a float in fixed-point notation with prec decimals
func (m *Messenger) ArgFloat(f float64, prec int) {
	m.text(func(dst []byte) []byte { return strconv.AppendFloat(dst, f, 'f', prec, 64) })
}

// ArgSci sends a float in scientific notation with digits decimals
func (m *Messenger) ArgSci(f float64, digits int) {
	m.text(func(dst []byte) []byte { return strconv.AppendFloat(dst, f, 'e', digits, 64) })
}

// ArgFormat sends a printf-formatted argument
func (m *Messenger) ArgFormat(format string, args ...interface{}) {
	if !m.inProgress {
		return
	}
	m.field(fmt.Appendf(nil, format, args...))
}

// AddBinArg sends v in its fixed-width little-endian binary form
func AddBinArg[T Fixed](m *Messenger, v T) {
	if !m.inProgress {
		return
	}
	var tmp [8]byte
	m.field(AppendFixed(tmp[:0], v))
}

// Err returns the write failure of the command in progress, if any
func (m *Messenger) Err() error {
	return m.sendErr
}

// InProgress reports whether a command has been started and not ended
func (m *Messenger) InProgress() bool {
	return m.inProgress
}

// End finishes the command: check value field when a CRC is configured,
// command separator, optional line ending. With requireAck it then waits up
// to timeout (zero selects the default) for a message with identifier ackID;
// a buffered command is flushed first. The bool reports overall success.
func (m *Messenger) End(requireAck bool, ackID uint8, timeout time.Duration) (bool, error) {
	if !m.inProgress {
		return false, ErrNotStarted
	}

	if m.crc.Enabled() {
		var check [2]byte
		ByteOrder.PutUint16(check[:], m.crc.Sum())
		m.scratch = append(m.scratch[:0], m.sep.Field)
		m.scratch = m.sep.AppendEscaped(m.scratch, check[0])
		m.scratch = m.sep.AppendEscaped(m.scratch, check[1])
		m.emit()
	}
	m.scratch = append(m.scratch[:0], m.sep.Command)
	if m.newlines {
		m.scratch = append(m.scratch, '\r', '\n')
	}
	m.emit()

	m.inProgress = false
	buffered := m.buffered
	m.buffered = false

	if m.sendErr != nil {
		m.stats.SendFailures.Add(1)
		if m.log != nil {
			m.log.Warn().Err(m.sendErr).Msg("send failed")
		}
		return false, m.sendErr
	}
	if buffered && requireAck {
		if err := m.Flush(); err != nil {
			m.stats.SendFailures.Add(1)
			return false, err
		}
	}
	m.stats.Sent.Add(1)

	if !requireAck {
		return true, nil
	}
	return m.waitForAck(ackID, timeout)
}

// Flush writes every staged command to the channel in one write. It refuses
// while a buffered command is in progress or after the buffer was exhausted.
func (m *Messenger) Flush() error {
	if m.inProgress && m.buffered {
		return ErrCommandInProgress
	}
	if m.sendBuf == nil {
		return nil
	}
	n, err := m.sendBuf.WriteTo(m.ch)
	if err != nil {
		return err
	}
	if m.log != nil && n > 0 {
		m.log.Trace().Int64("bytes", n).Msg("flushed send buffer")
	}
	return nil
}

// Discard drops every staged byte and abandons a buffered command in
// progress
func (m *Messenger) Discard() {
	if m.inProgress && m.buffered {
		m.inProgress = false
		m.buffered = false
		m.sendErr = nil
	}
	if m.sendBuf != nil {
		m.sendBuf.Discard()
	}
}

// Staged returns the number of bytes waiting in the send buffer
func (m *Messenger) Staged() int {
	if m.sendBuf == nil {
		return 0
	}
	return m.sendBuf.Len()
}

// SendCmd sends a complete command. Arguments may be strings, byte slices,
// booleans, integers, floats or fmt.Stringers.
func (m *Messenger) SendCmd(id uint8, args ...interface{}) error {
	_, err := m.send(id, false, 0, 0, args)
	return err
}

// SendCmdWithAck sends a complete command and waits for a message with
// identifier ackID
func (m *Messenger) SendCmdWithAck(id, ackID uint8, timeout time.Duration, args ...interface{}) (bool, error) {
	return m.send(id, true, ackID, timeout, args)
}

func (m *Messenger) send(id uint8, requireAck bool, ackID uint8, timeout time.Duration, args []interface{}) (bool, error) {
	if m.inProgress {
		return false, ErrCommandInProgress
	}
	for i, arg := range args {
		if !isTextArg(arg) {
			return false, fmt.Errorf("%w: argument %d has unsupported type %T", ErrInvalidArgument, i, arg)
		}
	}
	if err := m.Start(id); err != nil {
		return false, err
	}
	for _, arg := range args {
		m.arg(arg)
	}
	return m.End(requireAck, ackID, timeout)
}

// SendBinCmd sends a command with one binary argument
func SendBinCmd[T Fixed](m *Messenger, id uint8, v T) error {
	if m.inProgress {
		return ErrCommandInProgress
	}
	if err := m.Start(id); err != nil {
		return err
	}
	AddBinArg(m, v)
	_, err := m.End(false, 0, 0)
	return err
}

func isTextArg(arg interface{}) bool {
	switch arg.(type) {
	case string, []byte, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, fmt.Stringer:
		return true
	}
	return false
}

func (m *Messenger) arg(arg interface{}) {
	switch v := arg.(type) {
	case string:
		m.ArgString(v)
	case []byte:
		m.ArgBytes(v)
	case bool:
		m.ArgBool(v)
	case int:
		m.ArgInt(int64(v))
	case int8:
		m.ArgInt(int64(v))
	case int16:
		m.ArgInt(int64(v))
	case int32:
		m.ArgInt(int64(v))
	case int64:
		m.ArgInt(v)
	case uint:
		m.ArgUint(uint64(v))
	case uint8:
		m.ArgUint(uint64(v))
	case uint16:
		m.ArgUint(uint64(v))
	case uint32:
		m.ArgUint(uint64(v))
	case uint64:
		m.ArgUint(v)
	case float32:
		m.text(func(dst []byte) []byte { return strconv.AppendFloat(dst, float64(v), 'g', -1, 32) })
	case float64:
		m.text(func(dst []byte) []byte { return strconv.AppendFloat(dst, v, 'g', -1, 64) })
	case fmt.Stringer:
		m.ArgString(v.String())
	}
}
