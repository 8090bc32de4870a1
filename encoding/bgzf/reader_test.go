package bgzf

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBGZF(t *testing.T, input []byte, workers, batchWidth int) []byte {
	var buf bytes.Buffer
	w, err := NewWriterParams(&buf, workers, batchWidth, -1)
	require.Nil(t, err)
	n, err := w.Write(input)
	require.Nil(t, err)
	require.Equal(t, len(input), n)
	require.Nil(t, w.Close())
	return buf.Bytes()
}

func TestReaderRoundTripVariousLengths(t *testing.T) {
	for _, length := range []int{0, 1, 100, L - 1, L, L + 1, (2*DefaultBatchWidth+1)*L + 37} {
		input := make([]byte, length)
		_, err := rand.Read(input)
		require.Nil(t, err)

		wire := writeBGZF(t, input, 4, 8)

		r, err := NewReader(bytes.NewReader(wire), 4)
		require.Nil(t, err)
		got, err := r.ReadAll()
		require.Nil(t, err)
		assert.Equal(t, input, got, "length=%d", length)
	}
}

func TestReaderEmptyStream(t *testing.T) {
	r, err := NewReader(bytes.NewReader(Terminator[:]), 1)
	require.Nil(t, err)
	got, err := r.ReadAll()
	require.Nil(t, err)
	assert.Equal(t, 0, len(got))
}

func TestReaderTornFeed(t *testing.T) {
	input := make([]byte, 5*L+123)
	_, err := rand.Read(input)
	require.Nil(t, err)
	wire := writeBGZF(t, input, 2, 4)

	// Feed the wire bytes one at a time through a reader whose source
	// only ever yields partial reads, to exercise the refill loop's
	// "insufficient data, pull more" path.
	src := &oneByteAtATimeReader{data: wire}
	r, err := NewReader(src, 2)
	require.Nil(t, err)
	got, err := r.ReadAll()
	require.Nil(t, err)
	assert.Equal(t, input, got)
}

type oneByteAtATimeReader struct {
	data []byte
	pos  int
}

func (o *oneByteAtATimeReader) Read(p []byte) (int, error) {
	if o.pos >= len(o.data) {
		return 0, io.EOF
	}
	n := copy(p[:1], o.data[o.pos:o.pos+1])
	o.pos += n
	return n, nil
}

func TestReaderSmallInflateBufferForcesWrap(t *testing.T) {
	input := make([]byte, 4*L)
	_, err := rand.Read(input)
	require.Nil(t, err)
	wire := writeBGZF(t, input, 2, 4)

	// A buffer smaller than the whole stream forces the reader to wrap
	// (reset start/stop to 0) between refills.
	r, err := NewReaderParams(bytes.NewReader(wire), 2*L, 2, DefaultChunkSize)
	require.Nil(t, err)
	got, err := r.ReadAll()
	require.Nil(t, err)
	assert.Equal(t, input, got)
}

func TestReaderBlockTooLargeForBuffer(t *testing.T) {
	input := make([]byte, L)
	_, err := rand.Read(input)
	require.Nil(t, err)
	wire := writeBGZF(t, input, 1, 1)

	r, err := NewReaderParams(bytes.NewReader(wire), L/2, 1, DefaultChunkSize)
	require.Nil(t, err)
	_, err = r.ReadAll()
	assert.Equal(t, ErrBlockTooLarge, err)
}

func TestReaderReadIntoShortFill(t *testing.T) {
	input := []byte("hello, bgzf world")
	wire := writeBGZF(t, input, 1, 1)

	r, err := NewReader(bytes.NewReader(wire), 1)
	require.Nil(t, err)

	dst := make([]byte, 1024)
	n, err := r.ReadInto(dst)
	require.Nil(t, err)
	assert.Equal(t, len(input), n)
	assert.Equal(t, input, dst[:n])
}

func TestReaderWriteToAndLines(t *testing.T) {
	input := []byte("line one\nline two\nline three")
	wire := writeBGZF(t, input, 1, 1)

	r, err := NewReader(bytes.NewReader(wire), 1)
	require.Nil(t, err)

	var lines []string
	scanner := r.Lines()
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Nil(t, scanner.Err())
	assert.Equal(t, []string{"line one", "line two", "line three"}, lines)

	r, err = NewReader(bytes.NewReader(wire), 1)
	require.Nil(t, err)
	var out bytes.Buffer
	written, err := r.WriteTo(&out)
	require.Nil(t, err)
	assert.Equal(t, int64(len(input)), written)
	assert.Equal(t, input, out.Bytes())
}

func TestReaderCorruptMagicFails(t *testing.T) {
	input := []byte("some data")
	wire := writeBGZF(t, input, 1, 1)
	corrupt := append([]byte(nil), wire...)
	corrupt[0] = 0x00

	r, err := NewReader(bytes.NewReader(corrupt), 1)
	require.Nil(t, err)
	_, err = r.ReadAll()
	assert.IsType(t, &BadFormatError{}, err)
}
