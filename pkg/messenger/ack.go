// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"errors"
	"fmt"
	"time"
)

// waitForAck pumps the channel into the parser until an intact message with
// identifier ackID completes or timeout elapses.
//
// Handlers are paused for the duration: every other message completed
// during the wait is dropped. On success the acknowledgment stays the
// current message so its arguments can be read. On timeout a partially
// received message keeps accumulating.
func (m *Messenger) waitForAck(ackID uint8, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		timeout = m.timeout
	}
	m.paused = true
	defer func() { m.paused = false }()

	deadline := m.clock.Now().Add(timeout)
	for {
		if m.ch.Available() {
			b, err := m.ch.ReadByte()
			if err != nil && !errors.Is(err, ErrNoData) {
				return false, err
			}
			if err == nil {
				if msg, _ := m.receive(b); msg != nil {
					if isAck(msg, ackID) {
						m.stats.Acks.Add(1)
						if m.log != nil {
							m.log.Debug().Uint8("ack", ackID).Msg("acknowledged")
						}
						return true, nil
					}
					m.stats.Dropped.Add(1)
					if m.log != nil {
						m.log.Debug().
							Uint8("id", msg.CommandID()).
							Uint8("ack", ackID).
							Msg("message dropped while waiting for acknowledgment")
					}
				}
			}
		} else {
			m.clock.Sleep(m.pollInterval)
		}

		if !m.clock.Now().Before(deadline) {
			m.stats.AckTimeouts.Add(1)
			if m.log != nil {
				m.log.Warn().Uint8("ack", ackID).Str("timeout", timeout.String()).Msg("acknowledgment timed out")
			}
			return false, fmt.Errorf("%w: no id %d within %s", ErrAckTimeout, ackID, timeout)
		}
	}
}

func isAck(msg *Message, ackID uint8) bool {
	return !msg.IntegrityFailed() && !msg.Truncated() && msg.Len() > 0 &&
		msg.IDOK() && msg.CommandID() == ackID
}
