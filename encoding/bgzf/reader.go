package bgzf

import (
	"io"

	"github.com/grailbio/base/errors"
	"v.io/x/lib/vlog"
)

// pendingMember pairs a parsed-but-not-yet-inflated Member with the byte
// window its PayloadOffset/PayloadLen are relative to. Because a
// Reader's accumulator is truncated and regrown across refill calls,
// members that carry over from one refill to the next must keep a
// handle on the exact window they were parsed against; window is a slice
// that aliases the accumulator's backing array as it stood at parse
// time, which Go's garbage collector keeps alive for as long as this
// struct references it, regardless of what the accumulator field is
// reassigned to afterward.
type pendingMember struct {
	member Member
	window []byte
}

// Reader implements streaming, randomly-sliceable-on-write, parallel-on-
// read BGZF decompression. It owns a pre-allocated inflate destination
// buffer and a small input accumulator; it pulls bytes from source,
// drives the framing codec to discover members, submits batches of
// members to a worker pool, and exposes a sequential read cursor over
// the inflated output.
//
// A Reader is not safe for concurrent use by multiple goroutines.
type Reader struct {
	source    io.Reader
	chunkSize int

	accumulator []byte
	pending     []pendingMember

	inflateBuf   []byte
	start, stop  int

	pool *pool

	stats BatchStats

	err    error
	closed bool
}

// NewReader returns a Reader that reads BGZF framing from source, using
// a DefaultBufferSize inflate buffer and DefaultChunkSize source reads.
//
// workers is the number of pool workers used to inflate a batch of
// members in parallel; 0 selects min(4, runtime.NumCPU()). See
// NewReaderParams to set the buffer and chunk sizes explicitly.
func NewReader(source io.Reader, workers int) (*Reader, error) {
	return NewReaderParams(source, DefaultBufferSize, workers, DefaultChunkSize)
}

// NewReaderParams is NewReader with every tuning parameter made explicit,
// matching the teacher's own NewWriterParams convention of resolving all
// configuration at construction time rather than from package-level
// defaults or process state.
func NewReaderParams(source io.Reader, bufferSize, workerCount, chunkSize int) (*Reader, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Reader{
		source:     source,
		chunkSize:  chunkSize,
		inflateBuf: make([]byte, bufferSize),
		pool:       newPool(workers(workerCount, 4)),
	}, nil
}

// Read implements io.Reader: it fills p with inflated bytes, refilling
// the internal buffer from source as needed, and returns (0, io.EOF)
// once end-of-stream has been reached and consumed. Unlike Next and
// ReadInto, which signal end-of-stream with a zero-length, nil-error
// result, Read follows the io.Reader convention so that it can be used
// with bufio, io.Copy and io.ReadAll.
func (r *Reader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		view, err := r.Next(len(p) - n)
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return n, err
		}
		if len(view) == 0 {
			if n == 0 {
				return 0, io.EOF
			}
			break
		}
		n += copy(p[n:], view)
	}
	return n, nil
}

// Next returns a view of up to n inflated bytes, borrowed from the
// Reader's internal buffer. The view is valid only until the next call
// to Next or Read; callers that need to retain the bytes must copy them.
// A zero-length, nil-error result signals end-of-stream.
func (r *Reader) Next(n int) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.start == r.stop {
		if err := r.refill(); err != nil {
			r.err = err
			return nil, err
		}
	}
	size := n
	if avail := r.stop - r.start; size > avail {
		size = avail
	}
	view := r.inflateBuf[r.start : r.start+size]
	r.start += size
	return view, nil
}

// ReadInto fills buf entirely with inflated bytes, unless end-of-stream
// is reached first, and returns the number of bytes written.
func (r *Reader) ReadInto(buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		view, err := r.Next(len(buf) - n)
		if err != nil {
			return n, err
		}
		if len(view) == 0 {
			break
		}
		n += copy(buf[n:], view)
	}
	return n, nil
}

// ReadAll inflates the remainder of the stream and returns it as a
// single, owned byte slice.
func (r *Reader) ReadAll() ([]byte, error) {
	var out []byte
	for {
		view, err := r.Next(1 << 20)
		if err != nil {
			return out, err
		}
		if len(view) == 0 {
			return out, nil
		}
		out = append(out, view...)
	}
}

// Stats returns cumulative diagnostics across every batch inflated so
// far: total members, bytes in (inflated) and out (deflated), and the
// worker count used by the most recent batch.
func (r *Reader) Stats() BatchStats {
	return r.stats
}

// Close releases the Reader's inflate buffer. It does not close source.
func (r *Reader) Close() error {
	r.closed = true
	r.inflateBuf = nil
	r.accumulator = nil
	r.pending = nil
	return nil
}

// refill pulls more bytes from source, parses as many complete members
// as it can, and inflates a batch of them into the tail of inflateBuf.
// It implements the loop specified for the reader buffer manager: pull,
// parse, fit a batch to the remaining buffer space (rounded to a
// multiple of the worker count to keep the pool saturated), inflate, and
// repeat until either progress was made or source is exhausted.
func (r *Reader) refill() error {
	for {
		chunk := make([]byte, r.chunkSize)
		n, rerr := r.source.Read(chunk)
		sourceDone := rerr == io.EOF
		if rerr != nil && !sourceDone {
			return errors.E(rerr, "bgzf: reading source")
		}
		if n > 0 {
			r.accumulator = append(r.accumulator, chunk[:n]...)
		}

		window := r.accumulator
		newMembers, remainder, perr := parseAll(window)
		if perr != nil {
			return perr
		}
		r.accumulator = window[remainder:]

		candidates := make([]pendingMember, 0, len(r.pending)+len(newMembers))
		candidates = append(candidates, r.pending...)
		for _, m := range newMembers {
			candidates = append(candidates, pendingMember{member: m, window: window})
		}

		if len(candidates) == 0 {
			if sourceDone {
				return nil
			}
			continue
		}

		batchLen := r.fitBatch(candidates)
		if batchLen == 0 {
			if r.start == r.stop {
				r.start, r.stop = 0, 0
				batchLen = r.fitBatch(candidates)
			}
			if batchLen == 0 {
				if candidates[0].member.InflatedSize > len(r.inflateBuf) {
					return ErrBlockTooLarge
				}
				r.pending = candidates
				return nil
			}
		}

		batch := candidates[:batchLen]
		inflated, err := r.inflateBatch(batch)
		if err != nil {
			return err
		}
		r.pending = candidates[batchLen:]

		if inflated > 0 || sourceDone {
			return nil
		}
	}
}

// fitBatch computes how many leading candidates fit, by cumulative
// inflated size, into the free space at the tail of inflateBuf
// ([stop, B)), then rounds that count down to a multiple of the pool's
// worker count when there is more than one worker's worth of overflow,
// to keep every worker busy rather than leave a small straggler batch.
func (r *Reader) fitBatch(candidates []pendingMember) int {
	free := len(r.inflateBuf) - r.stop
	fit := 0
	cum := 0
	for _, c := range candidates {
		if cum+c.member.InflatedSize > free {
			break
		}
		cum += c.member.InflatedSize
		fit++
	}
	t := r.pool.Workers
	if t > 0 && fit > t {
		fit -= fit % t
	}
	return fit
}

// inflateBatch dispatches batch to the pool and advances stop by the
// total number of bytes inflated.
func (r *Reader) inflateBatch(batch []pendingMember) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	members := make([]Member, len(batch))
	payloads := make([][]byte, len(batch))
	destinations := make([][]byte, len(batch))
	offset := r.stop
	for i, c := range batch {
		if c.member.InflatedSize > len(r.inflateBuf) {
			return 0, ErrBlockTooLarge
		}
		members[i] = c.member
		payloads[i] = c.member.payload(c.window)
		destinations[i] = r.inflateBuf[offset : offset+c.member.InflatedSize]
		offset += c.member.InflatedSize
	}
	batchStats, err := r.pool.InflateBatch(members, payloads, destinations)
	if err != nil {
		return 0, err
	}
	r.stats.Blocks += batchStats.Blocks
	r.stats.BytesIn += batchStats.BytesIn
	r.stats.BytesOut += batchStats.BytesOut
	r.stats.Workers = batchStats.Workers
	total := offset - r.stop
	r.stop = offset
	if r.stop > len(r.inflateBuf) {
		vlog.Fatalf("bgzf: inflate buffer overrun: stop=%d > B=%d", r.stop, len(r.inflateBuf))
	}
	return total, nil
}
