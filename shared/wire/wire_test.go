package wire

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReaderSymmetry(t *testing.T) {
	w := NewWriter()
	w.Uint(7)
	w.Uint(1 << 40)
	w.Int(-3)
	w.Float(1.5)
	w.Bool(true)
	w.Vec3(mgl32.Vec3{1, -2, 3.25})
	b, err := w.Bytes()
	require.NoError(t, err)

	r := NewReader(b)
	assert.Equal(t, uint64(7), r.Uint())
	assert.Equal(t, uint64(1<<40), r.Uint())
	assert.Equal(t, int64(-3), r.Int())
	assert.Equal(t, float32(1.5), r.Float())
	assert.True(t, r.Bool())
	assert.Equal(t, mgl32.Vec3{1, -2, 3.25}, r.Vec3())
	assert.NoError(t, r.Done())
}

func TestSmallValuesPackCompactly(t *testing.T) {
	w := NewWriter()
	w.Uint(3)
	assert.Equal(t, 1, w.Len())
	w.Float(0)
	assert.Equal(t, 6, w.Len())
}

func TestTruncatedBufferIsMalformed(t *testing.T) {
	w := NewWriter()
	w.Uint(1)
	w.Vec3(mgl32.Vec3{1, 2, 3})
	b, err := w.Bytes()
	require.NoError(t, err)

	r := NewReader(b[:len(b)-2])
	r.Uint()
	r.Vec3()
	assert.ErrorIs(t, r.Done(), ErrMalformed)
}

func TestTrailingBytesAreMalformed(t *testing.T) {
	w := NewWriter()
	w.Uint(1)
	w.Uint(2)
	b, err := w.Bytes()
	require.NoError(t, err)

	r := NewReader(b)
	r.Uint()
	assert.ErrorIs(t, r.Done(), ErrMalformed)
}

func TestWrongTypeIsMalformed(t *testing.T) {
	w := NewWriter()
	w.Bool(true)
	b, err := w.Bytes()
	require.NoError(t, err)

	r := NewReader(b)
	r.Float()
	assert.ErrorIs(t, r.Err(), ErrMalformed)
	assert.Zero(t, r.Uint(), "reads after an error return zero")
}

func TestResetReusesWriter(t *testing.T) {
	w := NewWriter()
	w.Uint(300)
	w.Reset()
	w.Uint(1)
	b, err := w.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, b)
}
