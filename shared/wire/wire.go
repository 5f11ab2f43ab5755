// Package wire is the packed encoding used by replication frames. Values are
// msgpack encoded with compact integers and 32-bit floats, so a frame is only
// as large as the fields its mask selects.
package wire

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrMalformed is returned for truncated, over-long or mistyped buffers.
var ErrMalformed = errors.New("wire: malformed frame")

// Writer accumulates an encoded frame. The first error is sticky and
// reported by Bytes.
type Writer struct {
	buf bytes.Buffer
	enc *msgpack.Encoder
	err error
}

func NewWriter() *Writer {
	w := &Writer{}
	w.enc = msgpack.NewEncoder(&w.buf)
	return w
}

// Reset clears the writer for reuse.
func (w *Writer) Reset() {
	w.buf.Reset()
	w.err = nil
}

func (w *Writer) Uint(v uint64) {
	if w.err == nil {
		w.err = w.enc.EncodeUint(v)
	}
}

func (w *Writer) Int(v int64) {
	if w.err == nil {
		w.err = w.enc.EncodeInt(v)
	}
}

func (w *Writer) Float(v float32) {
	if w.err == nil {
		w.err = w.enc.EncodeFloat32(v)
	}
}

func (w *Writer) Bool(v bool) {
	if w.err == nil {
		w.err = w.enc.EncodeBool(v)
	}
}

func (w *Writer) Vec3(v mgl32.Vec3) {
	w.Float(v[0])
	w.Float(v[1])
	w.Float(v[2])
}

// Len reports the encoded size so far.
func (w *Writer) Len() int { return w.buf.Len() }

// Bytes returns a copy of the encoded frame.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, fmt.Errorf("wire: encode: %w", w.err)
	}
	out := make([]byte, w.buf.Len())
	copy(out, w.buf.Bytes())
	return out, nil
}

// Reader decodes a frame produced by Writer. The first error is sticky; all
// reads after it return zero values.
type Reader struct {
	src *bytes.Reader
	dec *msgpack.Decoder
	err error
}

func NewReader(b []byte) *Reader {
	src := bytes.NewReader(b)
	return &Reader{src: src, dec: msgpack.NewDecoder(src)}
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func (r *Reader) Uint() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.DecodeUint64()
	if err != nil {
		r.fail(err)
		return 0
	}
	return v
}

func (r *Reader) Int() int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.DecodeInt64()
	if err != nil {
		r.fail(err)
		return 0
	}
	return v
}

func (r *Reader) Float() float32 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.DecodeFloat32()
	if err != nil {
		r.fail(err)
		return 0
	}
	return v
}

func (r *Reader) Bool() bool {
	if r.err != nil {
		return false
	}
	v, err := r.dec.DecodeBool()
	if err != nil {
		r.fail(err)
		return false
	}
	return v
}

func (r *Reader) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{r.Float(), r.Float(), r.Float()}
}

// Err returns the first decode error.
func (r *Reader) Err() error { return r.err }

// Done reports the first decode error, or ErrMalformed if bytes remain
// after the last field.
func (r *Reader) Done() error {
	if r.err != nil {
		return r.err
	}
	if n := r.src.Len(); n > 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformed, n)
	}
	return nil
}
