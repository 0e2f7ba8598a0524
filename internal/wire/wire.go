package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	sherr "haz.cat/sshovel/internal/errors"
)

// MaxLength bounds the length fields this implementation will allocate for.
// Identity blobs, comments, and the container nonce are all far below this.
const MaxLength = 16 << 20

// Writer accumulates length-prefixed, big-endian primitives into a buffer.
type Writer struct {
	buf bytes.Buffer
}

// The write methods on bytes.Buffer are documented to always return a nil
// error, so the methods below do not return one either.

// Byte appends a single byte.
func (w *Writer) Byte(b byte) {
	w.buf.WriteByte(b)
}

// Uint32 appends a 32-bit unsigned integer.
func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// String appends a u32 length prefix followed by the raw bytes. The codec
// is byte-transparent: s may be an opaque blob or UTF-8 text.
func (w *Writer) String(s []byte) {
	if len(s) > math.MaxInt32 {
		panic(fmt.Sprintf("string too large for wire format, length %d", len(s)))
	}
	w.Uint32(uint32(len(s)))
	w.buf.Write(s)
}

// Raw appends bytes with no framing.
func (w *Writer) Raw(b []byte) {
	w.buf.Write(b)
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Framed returns the accumulated buffer wrapped as a single string, i.e.
// with an outer u32 length prefix. This is how a complete agent request is
// framed on the wire.
func (w *Writer) Framed() []byte {
	body := w.buf.Bytes()
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	return out
}

// Len returns the number of accumulated bytes, excluding any outer frame.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Reader decodes length-prefixed, big-endian primitives from a stream.
// Reads are exact: a stream that ends mid-field yields ErrMalformed.
type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, fmt.Errorf("%w: short read: %v", sherr.ErrMalformed, err)
	}
	return buf, nil
}

// Byte reads a single byte.
func (r *Reader) Byte() (byte, error) {
	buf, err := r.read(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// Uint32 reads a 32-bit unsigned integer.
func (r *Reader) Uint32() (uint32, error) {
	buf, err := r.read(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

// String reads a u32 length prefix and that many raw bytes. Lengths above
// MaxLength yield ErrOverflow.
func (r *Reader) String() ([]byte, error) {
	length, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if int64(length) > int64(MaxLength) {
		return nil, fmt.Errorf("%w: string length %d", sherr.ErrOverflow, length)
	}
	return r.read(int(length))
}

// Raw reads exactly n unframed bytes.
func (r *Reader) Raw(n int) ([]byte, error) {
	return r.read(n)
}
