// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ============================================================
// Fuzz Helpers
// ============================================================

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// newFuzzRng creates a random number generator seeded from FUZZ_SEED or the
// current time, and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomReservedBytes returns bytes biased towards reserved characters
func randomReservedBytes(rng *rand.Rand, n int) []byte {
	alphabet := []byte{',', ';', '/', 0x00, '\r', '\n', 'a', 'Z', '9', 0xFF}
	data := make([]byte, n)
	for i := range data {
		if rng.Intn(2) == 0 {
			data[i] = alphabet[rng.Intn(len(alphabet))]
		} else {
			data[i] = byte(rng.Intn(256))
		}
	}
	return data
}

// ============================================================
// Fake Clock and Channel
// ============================================================

type fakeClock struct {
	now   time.Time
	slept time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
	c.slept += d
}

// fakeChannel queues reply after every written command separator, visible
// once delay has passed on the fake clock
type fakeChannel struct {
	clock   *fakeClock
	in      []byte
	out     bytes.Buffer
	writes  int
	reply   []byte
	delay   time.Duration
	pending []byte
	readyAt time.Time
}

func newFakeChannel(clock *fakeClock) *fakeChannel {
	return &fakeChannel{clock: clock}
}

func (c *fakeChannel) deliver() {
	if len(c.pending) > 0 && !c.clock.Now().Before(c.readyAt) {
		c.in = append(c.in, c.pending...)
		c.pending = nil
	}
}

func (c *fakeChannel) Available() bool {
	c.deliver()
	return len(c.in) > 0
}

func (c *fakeChannel) ReadByte() (byte, error) {
	c.deliver()
	if len(c.in) == 0 {
		return 0, ErrNoData
	}
	b := c.in[0]
	c.in = c.in[1:]
	return b, nil
}

func (c *fakeChannel) Write(p []byte) (int, error) {
	c.writes++
	c.written(p)
	return c.out.Write(p)
}

func (c *fakeChannel) WriteByte(b byte) error {
	c.writes++
	c.written([]byte{b})
	return c.out.WriteByte(b)
}

func (c *fakeChannel) written(p []byte) {
	if c.reply != nil && bytes.IndexByte(p, DefaultCommandSeparator) >= 0 {
		c.pending = append(c.pending, c.reply...)
		c.readyAt = c.clock.Now().Add(c.delay)
	}
}

// ============================================================
// Wire Helpers
// ============================================================

// compose builds the wire bytes of one command with a throwaway messenger
func compose(t *testing.T, build func(m *Messenger), opts ...Option) []byte {
	t.Helper()
	ch := NewBufferChannel(nil)
	m, err := New(ch, opts...)
	require.NoError(t, err)
	build(m)
	return append([]byte(nil), ch.Written()...)
}

// feedAll feeds wire into p and calls fn for every completed message
func feedAll(p *Parser, wire []byte, fn func(m *Message, err error)) {
	for _, b := range wire {
		state, _ := p.Feed(b)
		if state == StateMessageComplete {
			fn(p.Begin())
		}
	}
}

// parseOne feeds wire and returns the first completed message
func parseOne(t *testing.T, wire []byte, opts ...Option) (*Message, error) {
	t.Helper()
	p, err := NewParser(opts...)
	require.NoError(t, err)
	var msg *Message
	var msgErr error
	for _, b := range wire {
		state, _ := p.Feed(b)
		if state == StateMessageComplete {
			msg, msgErr = p.Begin()
			break
		}
	}
	require.NotNil(t, msg, "no message completed in %q", wire)
	return msg, msgErr
}
