// Package bgzf implements streaming read and write of the BGZF (Blocked
// GZIP Format) container used by genomics tooling (SAM/BAM, VCF/BCF,
// tabix-indexed files).
//
// BGZF is a concatenation of ordinary gzip members in which each member
// carries an "extra subfield" declaring the exact on-disk length of the
// member. That makes the stream sliceable at member boundaries, and lets
// this package inflate or deflate many members in parallel while still
// producing a bit-identical, gzip-compatible byte stream.
//
// This package covers the parallel block codec and the streaming buffer
// managers that feed it: parsing BGZF framing from a byte window,
// scheduling DEFLATE/INFLATE across a worker pool, and managing the
// bounded staging buffers that let a caller see an ordinary sequential
// byte stream while the codec works in batches. Random access via BGZF
// virtual offsets is not implemented.
package bgzf

import "runtime"

const (
	// L is the fixed logical uncompressed block size used on write: the
	// BGZF-recommended uncompressed payload size.
	L = 0xff00

	// MaxMemberSize is the largest legal size, in bytes, of a single BGZF
	// member (header + extra + payload + trailer).
	MaxMemberSize = 0x10000

	// MaxInflatedSize is the largest legal inflated payload size for a
	// single member.
	MaxInflatedSize = 0x10000

	// memberOverhead is the number of bytes a member adds around its
	// deflated payload: 12-byte header, 6-byte BC extra subfield, 8-byte
	// trailer.
	memberOverhead = 18 + 8

	// deflateSlack is padding added to deflate scratch buffers to
	// accommodate worst-case (incompressible) expansion by the DEFLATE
	// primitive.
	deflateSlack = 1024

	// DefaultBufferSize is the reader's default inflate-buffer size.
	DefaultBufferSize = 50 << 20

	// DefaultBatchWidth is the pool's default batch width, K.
	DefaultBatchWidth = 32

	// DefaultChunkSize is the reader's default source pull granularity.
	DefaultChunkSize = 4 * 16 * 1024 * 4
)

// bgzfExtra is the six-byte "BC" extra subfield template written into
// every member this package produces: subfield id 'B','C', subfield
// length 2 (little-endian), and a placeholder BSIZE filled in per-member.
var bgzfExtra = [6]byte{'B', 'C', 2, 0, 0, 0}

// Terminator is the canonical 28-byte BGZF end-of-stream member: a valid
// gzip member with an empty payload. Every stream this package writes
// ends with exactly these bytes, written once at Close.
var Terminator = [28]byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
	0x42, 0x43, 0x02, 0x00, 0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// Member describes one BGZF gzip member located within a byte window.
// PayloadOffset/PayloadLen reference the window that was parsed; Member
// values are ephemeral and only meaningful against the window they came
// from.
type Member struct {
	// TotalSize is the length, in bytes, of the entire member on the
	// wire: 12 + XLEN + PayloadLen + 8, i.e. 18 + PayloadLen + 8 for the
	// XLEN of 6 this package writes.
	TotalSize int

	// PayloadOffset is the offset of the deflated payload within the
	// window that was parsed.
	PayloadOffset int

	// PayloadLen is the length of the deflated payload.
	PayloadLen int

	// InflatedSize is the uncompressed payload length, taken from the
	// trailer's ISIZE field.
	InflatedSize int

	// CRC32 is the CRC32 of the uncompressed payload, taken from the
	// trailer.
	CRC32 uint32
}

// payload returns the deflated payload bytes this Member was parsed
// from, as a sub-slice of the window it was parsed against. The returned
// slice aliases window; it remains valid for as long as window (or any
// slice sharing its backing array) is kept alive, independent of any
// later mutation of the variable the caller originally held window in.
func (m Member) payload(window []byte) []byte {
	return window[m.PayloadOffset : m.PayloadOffset+m.PayloadLen]
}

// workers returns n if positive, else def capped at runtime.NumCPU();
// the reader and writer pass def = 4, giving the reader's historical
// default of min(4, NumCPU) -- resolved here at construction time rather
// than at package init, per the re-architecture note against reading
// process-wide CPU count as a module-load-time default.
func workers(n, def int) int {
	if n > 0 {
		return n
	}
	if cpus := runtime.NumCPU(); cpus < def {
		return cpus
	}
	return def
}
