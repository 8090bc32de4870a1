// Package bgzf includes a Writer for the BGZF (block gzipped) file
// format.  A BGZF file consists of one or more complete gzip blocks
// concatenated together.  Each of the gzip blocks must represent at
// most 64KB of uncompressed data, and the compressed size of the
// block must be at most 64KB.  The payload of the BGZF file is equal
// to the uncompressed content of each block, concatenated together in
// order.  A valid BGZF file ends with the 28 byte BGZF terminator,
// a valid gzip block containing an empty payload.
//
// Unlike a serial gzip writer, this Writer batches up to K pending
// blocks and deflates them across a worker pool before emitting them,
// in order, to the sink. This lets a single Writer keep multiple CPUs
// busy compressing while still producing byte-identical BGZF output
// to a serial writer.
//
// Example use:
//   var bgzfFile bytes.Buffer
//   w, err := NewWriter(&bgzfFile, 0)
//   n, err := w.Write([]byte("Foo bar"))
//   err = w.Close()
package bgzf

import (
	"hash/crc32"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/klauspost/compress/flate"
)

// Writer compresses data into BGZF format, batching up to K pending
// L-byte logical blocks and deflating them in parallel across its
// pool before emitting each as its own member, in order, to sink.
//
// A Writer is not safe for concurrent use by multiple goroutines, and
// is not reusable after Close.
type Writer struct {
	sink  io.Writer
	level int
	pool  *pool
	K     int

	accumulator []byte
	buffers     [][]byte

	bytesWritten int64
	stats        BatchStats
	err          error
	closed       bool
}

// NewWriter returns a new BGZF writer using workers pool goroutines
// and the klauspost/compress/flate default compression level. 0
// selects a sensible default worker count.
func NewWriter(sink io.Writer, workers int) (*Writer, error) {
	return NewWriterParams(sink, workers, DefaultBatchWidth, flate.DefaultCompression)
}

// NewWriterParams is NewWriter with every tuning parameter explicit:
// workerCount pool goroutines, batchWidth pending blocks per batch
// (0 selects DefaultBatchWidth), and an explicit compression level.
func NewWriterParams(sink io.Writer, workerCount, batchWidth, level int) (*Writer, error) {
	if batchWidth <= 0 {
		batchWidth = DefaultBatchWidth
	}
	buffers := make([][]byte, batchWidth)
	for i := range buffers {
		buffers[i] = make([]byte, L+memberOverhead+deflateSlack)
	}
	return &Writer{
		sink:    sink,
		level:   level,
		pool:    newPool(workers(workerCount, 4)),
		K:       batchWidth,
		buffers: buffers,
	}, nil
}

// Write appends buf to the writer's accumulator. Only once the
// accumulator exceeds K*L bytes does it flush, repeatedly, down to
// under L bytes -- so an ordinary steady stream of Write calls stays
// below the threshold and lets the accumulator build up a full K-wide
// batch before the pool ever runs, instead of draining through the
// pool one block at a time.
func (w *Writer) Write(buf []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if w.closed {
		return 0, errors.E("bgzf: Write after Close")
	}
	w.accumulator = append(w.accumulator, buf...)
	if len(w.accumulator) > w.K*L {
		for len(w.accumulator) >= L {
			n := len(w.accumulator) / L
			if n > w.K {
				n = w.K
			}
			if err := w.flushBatch(n, false); err != nil {
				w.err = err
				return 0, err
			}
		}
	}
	return len(buf), nil
}

// Close flushes any remaining accumulated bytes as a final, possibly
// short, batch, writes the terminator member, and releases the
// writer's scratch buffers. Close is not idempotent and must be
// called exactly once.
func (w *Writer) Close() error {
	if w.closed {
		return errors.E("bgzf: Close called twice")
	}
	w.closed = true
	if w.err != nil {
		return w.err
	}
	for len(w.accumulator) > 0 {
		n := (len(w.accumulator) + L - 1) / L
		if n > w.K {
			n = w.K
		}
		if err := w.flushBatch(n, true); err != nil {
			w.err = err
			return err
		}
	}
	if err := fullWrite(w.sink, Terminator[:]); err != nil {
		w.err = errors.E(err, "bgzf: writing terminator")
		return w.err
	}
	w.buffers = nil
	return nil
}

// BytesWritten returns the number of inflated payload bytes emitted to
// sink as members so far. Bytes that Write has accepted but that are
// still held in the accumulator are not counted.
func (w *Writer) BytesWritten() int64 {
	return w.bytesWritten
}

// Stats returns cumulative diagnostics across every batch deflated so
// far: total members, bytes in (inflated) and out (deflated), and the
// worker count used by the most recent batch.
func (w *Writer) Stats() BatchStats {
	return w.stats
}

// flushBatch slices the first n blocks (each L bytes, except
// possibly the last when final is set and the accumulator holds a
// trailing short block) off the front of the accumulator, deflates
// them in parallel via the pool, and emits each resulting member to
// sink in order.
func (w *Writer) flushBatch(n int, final bool) error {
	if n == 0 {
		return nil
	}
	sources := make([][]byte, n)
	offset := 0
	for i := 0; i < n; i++ {
		size := L
		if offset+size > len(w.accumulator) {
			if !final {
				return errors.E("bgzf: flushBatch: incomplete block outside final flush")
			}
			size = len(w.accumulator) - offset
		}
		sources[i] = w.accumulator[offset : offset+size]
		offset += size
	}

	written, batchStats, err := w.pool.DeflateBatch(sources, w.buffers[:n], w.level)
	if err != nil {
		return err
	}
	w.stats.Blocks += batchStats.Blocks
	w.stats.BytesIn += batchStats.BytesIn
	w.stats.BytesOut += batchStats.BytesOut
	w.stats.Workers = batchStats.Workers

	for i := 0; i < n; i++ {
		crc := crc32.ChecksumIEEE(sources[i])
		if err := emitMember(w.sink, w.buffers[i][:written[i]], len(sources[i]), crc); err != nil {
			return errors.E(err, "bgzf: writing member")
		}
		w.bytesWritten += int64(len(sources[i]))
	}

	w.accumulator = w.accumulator[offset:]
	return nil
}
