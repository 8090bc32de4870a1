package bgzf

// BatchStats reports what one pool batch call actually did. It answers
// spec.md §9's note that the source's global timing counters should
// become per-call statistics via a return value rather than being
// dropped or kept as process-wide state.
type BatchStats struct {
	// Blocks is the number of members processed in the batch.
	Blocks int

	// BytesIn is the total inflated byte count across the batch: the
	// sum of destination lengths (inflate) or source lengths (deflate).
	BytesIn int64

	// BytesOut is the total deflated byte count across the batch: the
	// sum of payload lengths (inflate) or written lengths (deflate).
	BytesOut int64

	// Workers is the number of pool goroutines actually used for this
	// batch: min(Blocks, the pool's configured worker count).
	Workers int
}

func (p *pool) batchWorkers(n int) int {
	if n == 0 {
		return 0
	}
	if p.Workers <= 0 || p.Workers > n {
		return n
	}
	return p.Workers
}
