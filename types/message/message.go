// Package message implements the byte buffer that carries all sync wire
// payloads: an ordered, position-tracked container that values are appended
// to on one side and read back from, in the same order, on the other.
//
// It is a pure codec primitive; it knows nothing about synchronization.
package message

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrUnderrun is returned when a read would pass the end of the readable
// region. The cursor is left where it was; decoding after an underrun is
// unsafe (every later field would be misaligned), so callers are expected
// to abandon the message.
var ErrUnderrun = errors.New("message underrun")

// Message is an append-only byte buffer with a read cursor.
//
// All integers are big-endian on the wire. Byte slices and strings are
// length-prefixed with a uint32.
//
// The zero value is an empty message ready for use.
type Message struct {
	buf []byte
	off int
}

// FromBytes wraps received bytes in a Message positioned at the start.
// The slice is not copied.
func FromBytes(b []byte) *Message {
	return &Message{buf: b}
}

// Bytes returns the full encoded contents, independent of the read cursor.
func (m *Message) Bytes() []byte { return m.buf }

// Len returns the total number of bytes held.
func (m *Message) Len() int { return len(m.buf) }

// Remaining returns the number of readable bytes left after the cursor.
func (m *Message) Remaining() int { return len(m.buf) - m.off }

// Reset empties the message and rewinds the cursor, keeping the allocation.
func (m *Message) Reset() {
	m.buf = m.buf[:0]
	m.off = 0
}

// Rewind moves the read cursor back to the start without discarding data.
func (m *Message) Rewind() { m.off = 0 }

func (m *Message) take(n int) ([]byte, error) {
	if m.Remaining() < n {
		return nil, ErrUnderrun
	}
	b := m.buf[m.off : m.off+n]
	m.off += n
	return b, nil
}

func (m *Message) AppendUint8(v uint8) {
	m.buf = append(m.buf, v)
}

func (m *Message) AppendUint16(v uint16) {
	m.buf = binary.BigEndian.AppendUint16(m.buf, v)
}

func (m *Message) AppendUint32(v uint32) {
	m.buf = binary.BigEndian.AppendUint32(m.buf, v)
}

func (m *Message) AppendUint64(v uint64) {
	m.buf = binary.BigEndian.AppendUint64(m.buf, v)
}

func (m *Message) AppendInt8(v int8)   { m.AppendUint8(uint8(v)) }
func (m *Message) AppendInt16(v int16) { m.AppendUint16(uint16(v)) }
func (m *Message) AppendInt32(v int32) { m.AppendUint32(uint32(v)) }
func (m *Message) AppendInt64(v int64) { m.AppendUint64(uint64(v)) }

func (m *Message) AppendFloat32(v float32) { m.AppendUint32(math.Float32bits(v)) }
func (m *Message) AppendFloat64(v float64) { m.AppendUint64(math.Float64bits(v)) }

func (m *Message) AppendBool(v bool) {
	if v {
		m.AppendUint8(1)
	} else {
		m.AppendUint8(0)
	}
}

// AppendBytes appends a uint32 length prefix followed by the bytes.
func (m *Message) AppendBytes(b []byte) {
	m.AppendUint32(uint32(len(b)))
	m.buf = append(m.buf, b...)
}

// AppendString appends a uint32 length prefix followed by the string bytes.
func (m *Message) AppendString(s string) {
	m.AppendUint32(uint32(len(s)))
	m.buf = append(m.buf, s...)
}

func (m *Message) ReadUint8() (uint8, error) {
	b, err := m.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *Message) ReadUint16() (uint16, error) {
	b, err := m.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (m *Message) ReadUint32() (uint32, error) {
	b, err := m.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (m *Message) ReadUint64() (uint64, error) {
	b, err := m.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (m *Message) ReadInt8() (int8, error) {
	v, err := m.ReadUint8()
	return int8(v), err
}

func (m *Message) ReadInt16() (int16, error) {
	v, err := m.ReadUint16()
	return int16(v), err
}

func (m *Message) ReadInt32() (int32, error) {
	v, err := m.ReadUint32()
	return int32(v), err
}

func (m *Message) ReadInt64() (int64, error) {
	v, err := m.ReadUint64()
	return int64(v), err
}

func (m *Message) ReadFloat32() (float32, error) {
	v, err := m.ReadUint32()
	return math.Float32frombits(v), err
}

func (m *Message) ReadFloat64() (float64, error) {
	v, err := m.ReadUint64()
	return math.Float64frombits(v), err
}

func (m *Message) ReadBool() (bool, error) {
	v, err := m.ReadUint8()
	return v != 0, err
}

// ReadBytes reads a uint32 length prefix and then that many bytes,
// returning a copy. A prefix longer than the remaining bytes is an
// underrun and consumes nothing.
func (m *Message) ReadBytes() ([]byte, error) {
	if m.Remaining() < 4 {
		return nil, ErrUnderrun
	}
	n := int(binary.BigEndian.Uint32(m.buf[m.off:]))
	if m.Remaining()-4 < n {
		return nil, ErrUnderrun
	}
	m.off += 4
	b, _ := m.take(n)
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadString reads a uint32 length prefix and then that many bytes as a string.
func (m *Message) ReadString() (string, error) {
	b, err := m.ReadBytes()
	return string(b), err
}

// AppendRaw appends bytes verbatim, with no length prefix. The reader must
// know the width from context (fixed-size bitmasks and the like).
func (m *Message) AppendRaw(b []byte) {
	m.buf = append(m.buf, b...)
}

// ReadRaw reads exactly n bytes with no length prefix, returning a copy.
func (m *Message) ReadRaw(n int) ([]byte, error) {
	b, err := m.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}
