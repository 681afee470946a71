// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/loopholelabs/logging"
	"github.com/loopholelabs/logging/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NilChannel(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestMessenger_Dispatch(t *testing.T) {
	ch := NewBufferChannel([]byte("5,hello;6;99,x;abc,1;"))
	m, err := New(ch)
	require.NoError(t, err)

	var got []string
	require.NoError(t, m.Attach(5, func(msg *Message) {
		s, _ := msg.ReadString()
		got = append(got, "5:"+s)
	}))
	require.NoError(t, m.Attach(6, func(msg *Message) {
		got = append(got, "6")
	}))
	m.AttachDefault(func(msg *Message) {
		if msg.IDOK() {
			got = append(got, "default:"+strconv.Itoa(int(msg.CommandID())))
		} else {
			got = append(got, "default:invalid")
		}
	})

	require.NoError(t, m.FeedIncoming())
	assert.Equal(t, []string{"5:hello", "6", "default:99", "default:invalid"}, got)

	snap := m.Statistics().Snapshot()
	assert.Equal(t, uint64(4), snap.Received)
	assert.Equal(t, uint64(4), snap.Dispatched)
	assert.Equal(t, uint64(0), snap.Unhandled)
}

func TestMessenger_PassThroughCursor(t *testing.T) {
	ch := NewBufferChannel([]byte("8,1,2;"))
	m, err := New(ch)
	require.NoError(t, err)

	assert.False(t, m.Next())
	assert.False(t, m.Available())

	var args []string
	require.NoError(t, m.Attach(8, func(*Message) {
		assert.Equal(t, uint8(8), m.CommandID())
		for m.Available() {
			require.True(t, m.Next())
			args = append(args, string(m.Current().Token()))
		}
		assert.False(t, m.ArgOK())
	}))

	require.NoError(t, m.FeedIncoming())
	assert.Equal(t, []string{"1", "2"}, args)
}

func TestMessenger_Unhandled(t *testing.T) {
	ch := NewBufferChannel([]byte("3;4;"))
	m, err := New(ch)
	require.NoError(t, err)

	require.NoError(t, m.FeedIncoming())
	assert.Equal(t, uint64(2), m.Statistics().Unhandled.Load())
	assert.Equal(t, uint64(0), m.Statistics().Dispatched.Load())
}

func TestMessenger_EmptyMessagesSkipped(t *testing.T) {
	ch := NewBufferChannel([]byte(";;\r\n;"))
	m, err := New(ch)
	require.NoError(t, err)

	called := false
	m.AttachDefault(func(*Message) { called = true })
	require.NoError(t, m.FeedIncoming())
	assert.False(t, called)
	assert.Equal(t, uint64(0), m.Statistics().Unhandled.Load())
}

func TestMessenger_IntegrityFailureNotDispatched(t *testing.T) {
	good := compose(t, func(s *Messenger) {
		require.NoError(t, s.SendCmd(5, "x"))
	}, WithPolynomial(PolyCCITT))
	bad := append([]byte(nil), good...)
	bad[2] = 'y'

	ch := NewBufferChannel(append(bad, good...))
	m, err := New(ch, WithPolynomial(PolyCCITT))
	require.NoError(t, err)

	var got []string
	require.NoError(t, m.Attach(5, func(msg *Message) {
		s, _ := msg.ReadString()
		got = append(got, s)
	}))
	m.AttachDefault(func(*Message) { t.Error("default handler called") })

	require.NoError(t, m.FeedIncoming())
	assert.Equal(t, []string{"x"}, got)
	assert.Equal(t, uint64(1), m.Statistics().IntegrityFailures.Load())
	assert.Equal(t, uint64(1), m.Statistics().Dispatched.Load())
}

func TestMessenger_TruncatedNotDispatched(t *testing.T) {
	ch := NewBufferChannel([]byte("12345678901;5;"))
	m, err := New(ch, WithBufferSize(8))
	require.NoError(t, err)

	var ids []uint8
	m.AttachDefault(func(msg *Message) { ids = append(ids, msg.CommandID()) })

	require.NoError(t, m.FeedIncoming())
	assert.Equal(t, []uint8{5}, ids)
	assert.Equal(t, uint64(1), m.Statistics().FramingOverflows.Load())
}

func TestMessenger_HandlerTable(t *testing.T) {
	m, err := New(NewBufferChannel(nil))
	require.NoError(t, err)

	noop := func(*Message) {}
	for id := 0; id < MaxHandlers; id++ {
		require.NoError(t, m.Attach(uint8(id), noop))
	}
	assert.ErrorIs(t, m.Attach(MaxHandlers, noop), ErrHandlerTableFull)

	// Replacing an existing entry is allowed
	assert.NoError(t, m.Attach(0, noop))

	// Removing one frees a slot
	require.NoError(t, m.Attach(1, nil))
	assert.NoError(t, m.Attach(MaxHandlers, noop))
}

func TestMessenger_HandlerSendsReply(t *testing.T) {
	ch := NewBufferChannel([]byte("2,21;"))
	m, err := New(ch)
	require.NoError(t, err)

	require.NoError(t, m.Attach(2, func(msg *Message) {
		v, err := msg.ReadInt16()
		require.NoError(t, err)
		require.NoError(t, m.SendCmd(3, v*2))
	}))

	require.NoError(t, m.FeedIncoming())
	assert.Equal(t, "3,42;", string(ch.Written()))
}

func TestMessenger_Logging(t *testing.T) {
	var out bytes.Buffer
	log := logging.New(logging.Zerolog, "herald", &out)
	log.SetLevel(types.TraceLevel)

	ch := NewBufferChannel([]byte("12345678901;"))
	m, err := New(ch, WithBufferSize(8), WithLogger(log))
	require.NoError(t, err)
	require.NoError(t, m.FeedIncoming())

	assert.Contains(t, out.String(), "overflow")
}

// ============================================================
// Stream Channel
// ============================================================

type readWriter struct {
	io.Reader
	io.Writer
}

func TestStreamChannel(t *testing.T) {
	var written bytes.Buffer
	sc := NewStreamChannel(readWriter{strings.NewReader("5,x;6;"), &written}, 16)
	defer sc.Close()

	m, err := New(sc)
	require.NoError(t, err)

	var ids []uint8
	m.AttachDefault(func(msg *Message) { ids = append(ids, msg.CommandID()) })

	deadline := time.Now().Add(5 * time.Second)
	for len(ids) < 2 && time.Now().Before(deadline) {
		require.NoError(t, m.FeedIncoming())
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, []uint8{5, 6}, ids)

	for !sc.Closed() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.True(t, sc.Closed())
	assert.ErrorIs(t, sc.Err(), io.EOF)
	_, err = sc.ReadByte()
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, m.SendCmd(1, "ok"))
	assert.Equal(t, "1,ok;", written.String())
}

func TestStreamChannel_NoData(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	sc := NewStreamChannel(readWriter{r, io.Discard}, 0)

	assert.False(t, sc.Available())
	_, err := sc.ReadByte()
	assert.ErrorIs(t, err, ErrNoData)

	require.NoError(t, sc.Close())
	assert.True(t, sc.Closed())
}

func TestStreamChannel_ReadErrorSurfacesThroughErr(t *testing.T) {
	unplugged := errors.New("device unplugged")
	sc := NewStreamChannel(readWriter{io.MultiReader(strings.NewReader("3;"), iotest.ErrReader(unplugged)), io.Discard}, 0)
	defer sc.Close()

	m, err := New(sc)
	require.NoError(t, err)
	var ids []uint8
	m.AttachDefault(func(msg *Message) { ids = append(ids, msg.CommandID()) })

	deadline := time.Now().Add(5 * time.Second)
	for !sc.Closed() && time.Now().Before(deadline) {
		require.NoError(t, m.FeedIncoming())
		time.Sleep(time.Millisecond)
	}
	require.True(t, sc.Closed())

	// The end of the stream is not reported by FeedIncoming
	assert.False(t, sc.Available())
	assert.NoError(t, m.FeedIncoming())
	assert.Equal(t, []uint8{3}, ids)
	assert.ErrorIs(t, sc.Err(), unplugged)
}

func TestBufferChannel(t *testing.T) {
	ch := NewBufferChannel([]byte("ab"))
	assert.True(t, ch.Available())

	b, err := ch.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('a'), b)

	ch.Inject([]byte("c"))
	b, _ = ch.ReadByte()
	assert.Equal(t, byte('b'), b)
	b, _ = ch.ReadByte()
	assert.Equal(t, byte('c'), b)

	assert.False(t, ch.Available())
	_, err = ch.ReadByte()
	assert.ErrorIs(t, err, ErrNoData)

	require.NoError(t, ch.WriteByte('x'))
	_, err = ch.Write([]byte("yz"))
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(ch.Written()))
	ch.ResetWritten()
	assert.Empty(t, ch.Written())
}
