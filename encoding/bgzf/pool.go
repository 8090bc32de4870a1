package bgzf

import (
	"bytes"
	"hash/crc32"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"
	"github.com/klauspost/compress/flate"
)

// pool applies DEFLATE/INFLATE to a batch of independent blocks in
// parallel, bounded to at most Workers goroutines at a time. It preserves
// the pairing between input and output by giving every worker a
// pre-assigned, non-overlapping destination; workers never need further
// synchronization with each other. The DEFLATE/INFLATE primitive itself
// is github.com/klauspost/compress/flate, the same choice the teacher
// makes for its own BGZF shard compression.
type pool struct {
	Workers int
}

func newPool(workers int) *pool {
	return &pool{Workers: workers}
}

// each runs fn(i) for i in [0, n), using up to p.Workers goroutines at
// once, matching the bounded-fan-out idiom used throughout this module's
// teacher (pileup/snp's pileupSNPMain and encoding/pam/pamwriter.go both
// call traverse.Each to apply a function across independent units of
// work; traverse.T{Limit: n} is the same package's bounded variant,
// used here so a batch wider than the configured worker count doesn't
// spawn more goroutines than asked for).
func (p *pool) each(n int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	if p.Workers <= 0 || p.Workers >= n {
		return traverse.Each(n, fn)
	}
	return traverse.T{Limit: p.Workers}.Each(n, fn)
}

// InflateBatch inflates each of members[i]'s deflated payload (payloads[i],
// already resolved by the caller against whichever byte window it was
// parsed from -- pending members and freshly-parsed ones may reference
// different windows) into destinations[i], which must be exactly
// members[i].InflatedSize bytes long. Completion order across workers is
// unspecified; the pairing between member and destination is exact
// because each destination is a disjoint slice assigned before dispatch.
func (p *pool) InflateBatch(members []Member, payloads [][]byte, destinations [][]byte) (BatchStats, error) {
	if len(members) != len(destinations) || len(members) != len(payloads) {
		return BatchStats{}, errors.E("bgzf: InflateBatch: members/payloads/destinations length mismatch")
	}
	err := p.each(len(members), func(i int) error {
		m := members[i]
		if len(destinations[i]) != m.InflatedSize {
			return badPayload(i, errors.E("destination length does not match inflated size"))
		}
		fr := flate.NewReader(bytes.NewReader(payloads[i]))
		defer fr.Close() // nolint: errcheck
		n, err := io.ReadFull(fr, destinations[i])
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return badPayload(i, err)
		}
		if n != m.InflatedSize {
			return badPayload(i, errors.E("inflated length mismatch"))
		}
		if crc32.ChecksumIEEE(destinations[i]) != m.CRC32 {
			return badPayload(i, errors.E("crc32 mismatch"))
		}
		return nil
	})
	if err != nil {
		return BatchStats{}, err
	}
	stats := BatchStats{Blocks: len(members), Workers: p.batchWorkers(len(members))}
	for i, m := range members {
		stats.BytesIn += int64(m.InflatedSize)
		stats.BytesOut += int64(len(payloads[i]))
	}
	return stats, nil
}

// DeflateBatch deflates each sources[i] (no BGZF framing) into buffers[i],
// which must be large enough to hold the worst-case output, and returns
// the number of bytes written to each buffer, in input order. A failure
// on any individual block is fatal to the whole batch.
func (p *pool) DeflateBatch(sources [][]byte, buffers [][]byte, level int) ([]int, BatchStats, error) {
	if len(sources) != len(buffers) {
		return nil, BatchStats{}, errors.E("bgzf: DeflateBatch: sources/buffers length mismatch")
	}
	written := make([]int, len(sources))
	err := p.each(len(sources), func(i int) error {
		var buf bytes.Buffer
		buf.Grow(len(buffers[i]))
		fw, ferr := flate.NewWriter(&buf, level)
		if ferr != nil {
			return badPayload(i, ferr)
		}
		if _, ferr = fw.Write(sources[i]); ferr != nil {
			return badPayload(i, ferr)
		}
		if ferr = fw.Close(); ferr != nil {
			return badPayload(i, ferr)
		}
		if buf.Len() > len(buffers[i]) {
			return badPayload(i, errors.E("deflated output exceeds scratch buffer"))
		}
		written[i] = copy(buffers[i], buf.Bytes())
		return nil
	})
	if err != nil {
		return nil, BatchStats{}, err
	}
	stats := BatchStats{Blocks: len(sources), Workers: p.batchWorkers(len(sources))}
	for i := range sources {
		stats.BytesIn += int64(len(sources[i]))
		stats.BytesOut += int64(written[i])
	}
	return written, stats, nil
}
