// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAckMessenger(t *testing.T, reply string, delay time.Duration, opts ...Option) (*Messenger, *fakeChannel, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	ch := newFakeChannel(clock)
	if reply != "" {
		ch.reply = []byte(reply)
	}
	ch.delay = delay
	m, err := New(ch, append([]Option{WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	return m, ch, clock
}

func TestAck_Immediate(t *testing.T) {
	m, ch, clock := newAckMessenger(t, "1;", 0)

	ok, err := m.SendCmdWithAck(10, DefaultAckID, time.Second, "go")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "10,go;", ch.out.String())
	assert.Equal(t, time.Duration(0), clock.slept)
	assert.Equal(t, uint64(1), m.Statistics().Acks.Load())
}

func TestAck_Delayed(t *testing.T) {
	m, _, clock := newAckMessenger(t, "1;", 50*time.Millisecond)
	start := clock.Now()

	ok, err := m.SendCmdWithAck(10, 1, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 50*time.Millisecond, clock.Now().Sub(start))
}

func TestAck_Timeout(t *testing.T) {
	m, _, clock := newAckMessenger(t, "", 0)
	start := clock.Now()

	ok, err := m.SendCmdWithAck(10, 1, 100*time.Millisecond)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrAckTimeout)

	elapsed := clock.Now().Sub(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 100*time.Millisecond+2*DefaultPollInterval)

	assert.Equal(t, StateAccumulating, m.Parser().State())
	assert.Equal(t, uint64(1), m.Statistics().AckTimeouts.Load())
	assert.False(t, m.InProgress())
}

func TestAck_DefaultTimeout(t *testing.T) {
	m, _, clock := newAckMessenger(t, "", 0, WithDefaultTimeout(250*time.Millisecond), WithPollInterval(10*time.Millisecond))
	start := clock.Now()

	ok, err := m.SendCmdWithAck(10, 1, 0)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrAckTimeout)
	assert.Equal(t, 250*time.Millisecond, clock.Now().Sub(start))
}

func TestAck_OtherMessagesDropped(t *testing.T) {
	m, _, _ := newAckMessenger(t, "7,x;8;1,ok;", 5*time.Millisecond)

	called := false
	require.NoError(t, m.Attach(7, func(*Message) { called = true }))
	m.AttachDefault(func(*Message) { called = true })

	ok, err := m.SendCmdWithAck(10, 1, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, called)
	assert.Equal(t, uint64(2), m.Statistics().Dropped.Load())

	// Acknowledgment arguments stay readable
	assert.Equal(t, uint8(1), m.CommandID())
	s, err := m.Current().ReadString()
	require.NoError(t, err)
	assert.Equal(t, "ok", s)
}

func TestAck_HandlersResumeAfterWait(t *testing.T) {
	m, ch, _ := newAckMessenger(t, "1;", 0)

	var ids []uint8
	m.AttachDefault(func(msg *Message) { ids = append(ids, msg.CommandID()) })

	ok, err := m.SendCmdWithAck(10, 1, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ch.in = append(ch.in, "3;"...)
	require.NoError(t, m.FeedIncoming())
	assert.Equal(t, []uint8{3}, ids)
}

func TestAck_PartialMessageKeepsAccumulating(t *testing.T) {
	m, ch, _ := newAckMessenger(t, "4,par", 0)

	ok, err := m.SendCmdWithAck(10, 1, 20*time.Millisecond)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrAckTimeout)
	assert.Equal(t, StateAccumulating, m.Parser().State())
	assert.Equal(t, 5, m.Parser().Buffered())

	var got string
	require.NoError(t, m.Attach(4, func(msg *Message) { got, _ = msg.ReadString() }))
	ch.reply = nil
	ch.in = append(ch.in, "tial;"...)
	require.NoError(t, m.FeedIncoming())
	assert.Equal(t, "partial", got)
}

func TestAck_IntegrityFailedAckIgnored(t *testing.T) {
	reply := compose(t, func(r *Messenger) {
		require.NoError(t, r.SendCmd(1))
	}, WithPolynomial(PolyCCITT))

	var check [2]byte
	ByteOrder.PutUint16(check[:], Checksum(PolyCCITT, []byte("1"))^0xFFFF)
	corrupted := append([]byte("1,"), DefaultSeparators().EscapeBytes(check[:])...)
	corrupted = append(corrupted, ';')

	m, ch, _ := newAckMessenger(t, "", 0, WithPolynomial(PolyCCITT))
	ch.reply = corrupted

	ok, err := m.SendCmdWithAck(10, 1, 10*time.Millisecond)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrAckTimeout)
	assert.Equal(t, uint64(1), m.Statistics().IntegrityFailures.Load())

	// An intact acknowledgment succeeds
	ch.reply = reply
	ok, err = m.SendCmdWithAck(10, 1, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAck_Buffered(t *testing.T) {
	m, ch, _ := newAckMessenger(t, "1;", 0)

	require.NoError(t, m.StartBuffered(20))
	m.ArgInt(5)
	ok, err := m.End(true, 1, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "20,5;", ch.out.String())
	assert.Equal(t, 1, ch.writes)
	assert.Equal(t, 0, m.Staged())
}

func TestAck_CheckValues(t *testing.T) {
	for _, p := range []Polynomial{PolyMCRF4XX, PolyX25} {
		t.Run(p.String(), func(t *testing.T) {
			reply := compose(t, func(r *Messenger) {
				require.NoError(t, r.SendCmd(1, "ready"))
			}, WithPolynomial(p))

			m, ch, _ := newAckMessenger(t, string(reply), time.Millisecond, WithPolynomial(p))
			ok, err := m.SendCmdWithAck(30, 1, time.Second, 99)
			require.NoError(t, err)
			assert.True(t, ok)

			msg, err := parseOne(t, ch.out.Bytes(), WithPolynomial(p))
			require.NoError(t, err)
			assert.Equal(t, uint8(30), msg.CommandID())
		})
	}
}
