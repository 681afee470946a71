// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package messenger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_TypedReaders(t *testing.T) {
	wire := "1,-32768,2147483647,-9223372036854775808,255,1,true,0,x,3.5,-1.25e3, 17 ,hello;"
	msg, err := parseOne(t, []byte(wire), WithBufferSize(128))
	require.NoError(t, err)

	i16, err := msg.ReadInt16()
	require.NoError(t, err)
	assert.Equal(t, int16(math.MinInt16), i16)

	i32, err := msg.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(math.MaxInt32), i32)

	i64, err := msg.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), i64)

	u8, err := msg.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(255), u8)

	b, err := msg.ReadBool()
	require.NoError(t, err)
	assert.True(t, b)

	b, err = msg.ReadBool()
	require.NoError(t, err)
	assert.True(t, b)

	b, err = msg.ReadBool()
	require.NoError(t, err)
	assert.False(t, b)

	c, err := msg.ReadChar()
	require.NoError(t, err)
	assert.Equal(t, byte('x'), c)

	f32, err := msg.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, float32(3.5), f32)

	f64, err := msg.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, -1250.0, f64)

	padded, err := msg.ReadInt16()
	require.NoError(t, err)
	assert.Equal(t, int16(17), padded)

	s, err := msg.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
	assert.True(t, msg.ArgOK())

	_, err = msg.ReadString()
	assert.ErrorIs(t, err, ErrNoArgument)
	assert.False(t, msg.ArgOK())
}

func TestMessage_InvalidArguments(t *testing.T) {
	msg, err := parseOne(t, []byte("1,abc,70000,256,maybe,;"))
	require.NoError(t, err)

	_, err = msg.ReadInt32()
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.False(t, msg.ArgOK())

	v, err := msg.ReadInt16()
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, int16(0), v)

	_, err = msg.ReadUint8()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = msg.ReadBool()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = msg.ReadChar()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// Readers keep advancing after a failure
	assert.False(t, msg.Available())
}

func TestMessage_NextKeepsLastToken(t *testing.T) {
	msg, err := parseOne(t, []byte("1,a;"))
	require.NoError(t, err)

	require.True(t, msg.Next())
	assert.Equal(t, "a", string(msg.Token()))

	assert.False(t, msg.Next())
	assert.Equal(t, "a", string(msg.Token()))
	assert.False(t, msg.Next())
	assert.Equal(t, "a", string(msg.Token()))
}

func TestMessage_EmptyFields(t *testing.T) {
	msg, err := parseOne(t, []byte("1,,x,;"))
	require.NoError(t, err)

	assert.Equal(t, [][]byte{{}, []byte("x"), {}}, msg.Rest())
}

func TestMessage_FieldsUnescapedOnce(t *testing.T) {
	// "a//,b" decodes to "a/" then "b"; a second pass would corrupt it
	msg, err := parseOne(t, []byte("1,a//,b,/////,;"))
	require.NoError(t, err)

	fields := msg.Rest()
	require.Len(t, fields, 3)
	assert.Equal(t, "a/", string(fields[0]))
	assert.Equal(t, "b", string(fields[1]))
	assert.Equal(t, "//,", string(fields[2]))
}

func TestMessage_CopyString(t *testing.T) {
	msg, err := parseOne(t, []byte("1,hello,hi;"))
	require.NoError(t, err)

	dst := make([]byte, 3)
	n := msg.CopyString(dst)
	assert.Equal(t, 3, n)
	assert.Equal(t, "hel", string(dst))

	n = msg.CopyString(dst)
	assert.Equal(t, 2, n)
	assert.Equal(t, "hi", string(dst[:n]))

	assert.Equal(t, 0, msg.CopyString(dst))
	assert.False(t, msg.ArgOK())
}

func TestMessage_CompareString(t *testing.T) {
	msg, err := parseOne(t, []byte("1,on,a/,b;"))
	require.NoError(t, err)

	assert.False(t, msg.CompareString("off"))
	assert.True(t, msg.CompareString("a,b"))
	assert.False(t, msg.CompareString("anything"))
}

func TestMessage_ReadBytesIsCopy(t *testing.T) {
	msg, err := parseOne(t, []byte("1,abc;"))
	require.NoError(t, err)

	b, err := msg.ReadBytes()
	require.NoError(t, err)
	b[0] = 'z'
	assert.Equal(t, "abc", string(msg.Token()))
}

// ============================================================
// Binary Arguments
// ============================================================

type celsius int16

func TestBinaryArguments(t *testing.T) {
	wire := compose(t, func(m *Messenger) {
		require.NoError(t, m.Start(9))
		AddBinArg(m, int32(-5))
		AddBinArg(m, 3.25)
		AddBinArg(m, uint16(0x2C3B)) // ',' and ';' on the wire
		AddBinArg(m, true)
		AddBinArg(m, celsius(-40))
		AddBinArg(m, float32(1.5))
		_, err := m.End(false, 0, 0)
		require.NoError(t, err)
	})

	msg, err := parseOne(t, wire)
	require.NoError(t, err)
	assert.Equal(t, uint8(9), msg.CommandID())

	i32, err := ReadBinArg[int32](msg)
	require.NoError(t, err)
	assert.Equal(t, int32(-5), i32)

	f64, err := ReadBinArg[float64](msg)
	require.NoError(t, err)
	assert.Equal(t, 3.25, f64)

	u16, err := ReadBinArg[uint16](msg)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x2C3B), u16)

	b, err := ReadBinArg[bool](msg)
	require.NoError(t, err)
	assert.True(t, b)

	temp, err := ReadBinArg[celsius](msg)
	require.NoError(t, err)
	assert.Equal(t, celsius(-40), temp)

	f32, err := ReadBinArg[float32](msg)
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f32)
	assert.True(t, msg.ArgOK())
}

func TestBinaryArguments_WidthMismatch(t *testing.T) {
	stats := NewStatistics()
	wire := compose(t, func(m *Messenger) {
		require.NoError(t, m.Start(9))
		AddBinArg(m, int32(7))
		_, err := m.End(false, 0, 0)
		require.NoError(t, err)
	})

	msg, err := parseOne(t, wire, WithStatistics(stats))
	require.NoError(t, err)

	v, err := ReadBinArg[int64](msg)
	assert.ErrorIs(t, err, ErrDecodeMismatch)
	assert.Equal(t, int64(0), v)
	assert.False(t, msg.ArgOK())
	assert.Equal(t, uint64(1), stats.DecodeMismatches.Load())

	_, err = ReadBinArg[int32](msg)
	assert.ErrorIs(t, err, ErrNoArgument)
}

func TestFixedWidths(t *testing.T) {
	assert.Equal(t, 1, Width(true))
	assert.Equal(t, 1, Width(uint8(0)))
	assert.Equal(t, 2, Width(int16(0)))
	assert.Equal(t, 2, Width(celsius(0)))
	assert.Equal(t, 4, Width(float32(0)))
	assert.Equal(t, 8, Width(uint64(0)))

	assert.Equal(t, []byte{0x3B, 0x2C}, AppendFixed(nil, uint16(0x2C3B)))

	_, err := DecodeFixed[uint16]([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrDecodeMismatch)
}

// ============================================================
// CBOR Arguments
// ============================================================

type reading struct {
	Sensor string  `cbor:"1,keyasint"`
	Value  float64 `cbor:"2,keyasint"`
}

func TestCBORArguments(t *testing.T) {
	in := reading{Sensor: "a;b,c", Value: 21.5}
	wire := compose(t, func(m *Messenger) {
		require.NoError(t, m.Start(12))
		require.NoError(t, m.AddCBORArg(in))
		m.ArgString("tail")
		_, err := m.End(false, 0, 0)
		require.NoError(t, err)
	}, WithPolynomial(PolyKermit))

	msg, err := parseOne(t, wire, WithPolynomial(PolyKermit))
	require.NoError(t, err)

	var out reading
	require.NoError(t, msg.ReadCBORArg(&out))
	assert.Equal(t, in, out)

	s, err := msg.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "tail", s)
}

func TestCBORArguments_Invalid(t *testing.T) {
	msg, err := parseOne(t, []byte("12,\xff\xff;"))
	require.NoError(t, err)

	var out reading
	assert.ErrorIs(t, msg.ReadCBORArg(&out), ErrDecodeMismatch)
	assert.ErrorIs(t, msg.ReadCBORArg(&out), ErrNoArgument)
}

func TestAddCBORArg_NotStarted(t *testing.T) {
	m, err := New(NewBufferChannel(nil))
	require.NoError(t, err)
	assert.ErrorIs(t, m.AddCBORArg(1), ErrNotStarted)
}
