// Package binary provides low-level binary I/O operations for NLP4 file parsing.
//
// NLP4 stores every integer little-endian and addresses every block by an
// absolute file offset, so the [Reader] is a positional cursor over an
// [io.ReaderAt] rather than a stream. Cursors created with [Reader.At] share the
// underlying source but keep independent positions, which lets the header,
// directory, metadata and image phases each seek where they need to.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrTruncated is returned when the source holds fewer bytes than a read requires.
var ErrTruncated = errors.New("truncated read")

// chunkSize bounds each allocation when reading from a source of unknown size.
const chunkSize = 1 << 20

// sizer is implemented by sources that know their length, such as Source,
// bytes.Reader and io.SectionReader.
type sizer interface {
	Size() int64
}

// Reader reads little-endian NLP4 fields from an io.ReaderAt.
type Reader struct {
	r     io.ReaderAt
	order binary.ByteOrder
	pos   int64
	size  int64 // -1 when unknown
}

// NewReader creates a reader positioned at offset 0.
func NewReader(r io.ReaderAt) *Reader {
	size := int64(-1)
	if s, ok := r.(sizer); ok {
		size = s.Size()
	}
	return &Reader{
		r:     r,
		order: binary.LittleEndian,
		size:  size,
	}
}

// At returns a new reader positioned at the given offset.
// The new reader shares the underlying io.ReaderAt but has independent position.
func (r *Reader) At(offset int64) *Reader {
	return &Reader{
		r:     r.r,
		order: r.order,
		pos:   offset,
		size:  r.size,
	}
}

// Pos returns the current read position.
func (r *Reader) Pos() int64 {
	return r.pos
}

// Seek moves the position to an absolute offset.
func (r *Reader) Seek(offset int64) {
	r.pos = offset
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int64) {
	r.pos += n
}

// Size returns the source length, or -1 when the source does not report one.
func (r *Reader) Size() int64 {
	return r.size
}

// ReadBytes reads exactly n bytes from the current position. Nothing is
// allocated for bytes the source cannot hold: sized sources are checked up
// front and others are read in bounded chunks.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	if r.size >= 0 && (r.pos < 0 || int64(n) > r.size-r.pos) {
		return nil, r.truncated(n, max(r.size-r.pos, 0))
	}
	if r.size >= 0 || n <= chunkSize {
		buf := make([]byte, n)
		got, err := r.r.ReadAt(buf, r.pos)
		if got < n {
			return nil, r.short(n, int64(got), err)
		}
		r.pos += int64(n)
		return buf, nil
	}

	buf := make([]byte, 0, chunkSize)
	for len(buf) < n {
		off := len(buf)
		k := min(chunkSize, n-off)
		buf = append(buf, make([]byte, k)...)
		got, err := r.r.ReadAt(buf[off:], r.pos+int64(off))
		if got < k {
			return nil, r.short(n, int64(off+got), err)
		}
	}
	r.pos += int64(n)
	return buf, nil
}

func (r *Reader) short(n int, got int64, err error) error {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return r.truncated(n, got)
	}
	return err
}

func (r *Reader) truncated(n int, have int64) error {
	return fmt.Errorf("%w: want %d bytes at offset %d, have %d", ErrTruncated, n, r.pos, have)
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	buf, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	buf, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(buf), nil
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(buf), nil
}

// ReadUintN reads an unsigned little-endian integer of n bytes (1 to 8).
func (r *Reader) ReadUintN(n int) (uint64, error) {
	buf, err := r.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return decodeUint(buf), nil
}

// ReadFloat64 reads an IEEE-754 double.
func (r *Reader) ReadFloat64() (float64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(r.order.Uint64(buf)), nil
}

// Peek reads n bytes without advancing the position.
func (r *Reader) Peek(n int) ([]byte, error) {
	pos := r.pos
	buf, err := r.ReadBytes(n)
	r.pos = pos
	return buf, err
}

// decodeUint decodes a little-endian unsigned integer of up to 8 bytes.
func decodeUint(buf []byte) uint64 {
	var val uint64
	for i := len(buf) - 1; i >= 0; i-- {
		val = (val << 8) | uint64(buf[i])
	}
	return val
}
