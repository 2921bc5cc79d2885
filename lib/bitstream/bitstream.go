// Package bitstream provides the bit-level cursor underlying every
// encoding rule set: a read/write position over a byte buffer with
// sub-byte addressing and MSB-first bit ordering.
//
// A Cursor is either a writer (created with NewWriter) or a reader
// (created with NewReader over existing data). Position is monotonic;
// there is no seeking backward. Byte-oriented helpers operate at the
// current bit offset without forcing alignment; callers that need
// octet alignment use Align (write side) or Advance (read side).
//
// Cursor is not safe for concurrent use. Each goroutine encodes or
// decodes on its own Cursor.
package bitstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
)

// ErrUnderflow is returned when a read asks for more bits than remain.
var ErrUnderflow = errors.New("bitstream: read past end of data")

// ErrBitCount is returned when a bit count is outside 1..64.
var ErrBitCount = errors.New("bitstream: bit count must be between 1 and 64")

const initialBufferSize = 64

// Cursor manages a bit stream for encoding or decoding.
//
// offset is the bit position within the current byte: 0 means no bits
// of the byte are consumed, 1-7 a partial byte, and 8 marks the byte
// as fully consumed with advancement deferred to the next operation.
// The lazy offset==8 state avoids slicing the buffer on every aligned
// operation.
type Cursor struct {
	buf     []byte
	offset  uint8
	written uint64
	read    uint64
}

// NewWriter returns an empty Cursor ready for writing.
func NewWriter() *Cursor {
	return &Cursor{buf: make([]byte, 0, initialBufferSize)}
}

// NewReader returns a Cursor reading from data. The data must start
// byte-aligned, which holds for every complete encoding.
func NewReader(data []byte) *Cursor {
	return &Cursor{buf: data}
}

// BitsWritten reports the total number of bits written, including any
// partial final byte.
func (c *Cursor) BitsWritten() uint64 { return c.written }

// BitsRead reports the total number of bits consumed, including bits
// skipped by Advance.
func (c *Cursor) BitsRead() uint64 { return c.read }

// Remaining reports the number of unread bits left in a reader.
func (c *Cursor) Remaining() uint64 {
	n := uint64(len(c.buf)) * 8
	consumed := uint64(c.offset)
	if consumed > n {
		return 0
	}
	return n - consumed
}

// Bytes returns the written data, including a zero-padded partial
// final byte if the bit count is not a multiple of eight.
func (c *Cursor) Bytes() []byte {
	if c.written == 0 {
		return nil
	}
	return c.buf
}

// Len returns the number of bytes currently held by the buffer.
func (c *Cursor) Len() int { return len(c.buf) }

func (c *Cursor) String() string {
	return fmt.Sprintf("bitstream.Cursor{len=%d offset=%d written=%d read=%d}",
		len(c.buf), c.offset, c.written, c.read)
}

// grow extends the buffer by n bytes, doubling capacity as needed so
// repeated appends stay amortized O(1).
func (c *Cursor) grow(n int) {
	if cap(c.buf) < len(c.buf)+n {
		capacity := max(cap(c.buf)*2, len(c.buf)+n)
		c.buf = slices.Grow(c.buf, capacity-len(c.buf))
	}
	c.buf = c.buf[:len(c.buf)+n]
}

// Write appends the least significant num bits of value, most
// significant bit first. num must be between 1 and 64.
func (c *Cursor) Write(num uint8, value uint64) error {
	if num == 0 || num > 64 {
		return ErrBitCount
	}
	if num < 64 {
		value &= (1 << num) - 1
	}

	// Fast path: at a byte boundary whole groups can be appended
	// directly via a big-endian staging array.
	if len(c.buf) == 0 || c.offset == 8 {
		nbytes := (int(num) + 7) >> 3
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], value<<(64-uint(num)))
		c.buf = append(c.buf, tmp[:nbytes]...)
		c.offset = num & 7
		if c.offset == 0 {
			c.offset = 8
		}
		c.written += uint64(num)
		return nil
	}

	pending := num
	for pending > 0 {
		if c.offset == 8 || len(c.buf) == 0 {
			c.grow(1)
			c.offset = 0
		}
		var (
			available = uint8(8 - c.offset)
			nbits     = min(pending, available)
			remaining = pending - nbits
			chunk     = uint8(value>>remaining) & ((1 << nbits) - 1)
			shift     = available - nbits
			pos       = len(c.buf) - 1
		)
		c.buf[pos] |= chunk << shift
		c.offset += nbits
		pending -= nbits
	}
	c.written += uint64(num)
	return nil
}

// Read consumes the next num bits and returns them right-aligned in a
// uint64. num=0 reads nothing. Fails with ErrUnderflow when fewer than
// num bits remain.
func (c *Cursor) Read(num uint8) (uint64, error) {
	if num == 0 {
		return 0, nil
	}
	if num > 64 {
		return 0, ErrBitCount
	}
	if c.Remaining() < uint64(num) {
		return 0, ErrUnderflow
	}

	// Fast path at a byte boundary.
	if c.offset == 0 || c.offset == 8 {
		if c.offset == 8 {
			c.buf = c.buf[1:]
			c.offset = 0
		}
		nbytes := (int(num) + 7) >> 3
		if len(c.buf) < nbytes {
			return 0, ErrUnderflow
		}
		var tmp [8]byte
		copy(tmp[:nbytes], c.buf[:nbytes])
		result := binary.BigEndian.Uint64(tmp[:]) >> (64 - num)
		remainder := num % 8
		// Keep the last touched byte in the buffer; offset marks how
		// much of it is consumed (8 meaning all of it).
		c.buf = c.buf[nbytes-1:]
		if remainder == 0 {
			c.offset = 8
		} else {
			c.offset = remainder
		}
		c.read += uint64(num)
		return result, nil
	}

	var (
		result  uint64
		pending = num
	)
	for pending > 0 {
		if c.offset == 8 {
			c.buf = c.buf[1:]
			c.offset = 0
			if len(c.buf) == 0 {
				return 0, ErrUnderflow
			}
		}
		var (
			remaining = uint8(8 - c.offset)
			reading   = min(pending, remaining)
			mask      = uint8((1 << reading) - 1)
			shift     = remaining - reading
			bits      = uint64((c.buf[0] >> shift) & mask)
		)
		result = result<<reading | bits
		c.offset += reading
		pending -= reading
	}
	c.read += uint64(num)
	return result, nil
}

// WriteBytes appends full octets continuing from the current bit
// offset. It does not force alignment; callers align first when the
// rule set requires octet-aligned contents.
func (c *Cursor) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if len(c.buf) == 0 || c.offset == 8 {
		c.buf = append(c.buf, data...)
		c.written += uint64(len(data)) * 8
		c.offset = 8
		return nil
	}
	for _, b := range data {
		if err := c.Write(8, uint64(b)); err != nil {
			return err
		}
	}
	return nil
}

// ReadBytes consumes exactly n octets starting at the current bit
// offset.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrUnderflow
	}
	if n == 0 {
		return []byte{}, nil
	}
	if c.offset == 0 || c.offset == 8 {
		if c.offset == 8 {
			if len(c.buf) == 0 {
				return nil, ErrUnderflow
			}
			c.buf = c.buf[1:]
			c.offset = 0
		}
		if len(c.buf) < n {
			return nil, ErrUnderflow
		}
		result := make([]byte, n)
		copy(result, c.buf[:n])
		c.buf = c.buf[n:]
		c.read += uint64(n) * 8
		return result, nil
	}
	result := make([]byte, n)
	for i := range result {
		v, err := c.Read(8)
		if err != nil {
			return nil, err
		}
		result[i] = uint8(v)
	}
	return result, nil
}

// Align pads the partial byte with zero bits so the next write starts
// on an octet boundary. A no-op when already aligned.
func (c *Cursor) Align() {
	if c.offset > 0 && c.offset < 8 {
		c.written += uint64(8 - c.offset)
		c.offset = 8
	}
}

// Advance skips the rest of the current byte so the next read starts
// on an octet boundary. The read counter includes the skipped bits.
func (c *Cursor) Advance() {
	if c.offset > 0 && c.offset < 8 {
		c.read += uint64(8 - c.offset)
		c.offset = 8
	}
}
