package bgzf

import (
	"encoding/binary"
	"io"
)

// fixedHeaderLen is the length, in bytes, of the gzip fixed header plus
// the BC extra subfield: 12-byte header (magic, MTIME, XFL, OS, XLEN) +
// 6-byte "BC" subfield (id, SLEN, BSIZE).
const fixedHeaderLen = 12 + 6

// gzipMagic is the four leading bytes every gzip (and so every BGZF)
// member starts with: ID1, ID2, CM (DEFLATE), FLG (FEXTRA set).
var gzipMagic = [4]byte{0x1f, 0x8b, 0x08, 0x04}

// parseMember reads one BGZF member from the front of window.
//
// It returns the parsed Member and the number of bytes consumed
// (== Member.TotalSize) on success. If window does not yet hold a
// complete member, it returns errInsufficientData, which callers must
// treat as "pull more bytes and retry", never surface to an API caller.
// Any other error is a BadFormatError: the window holds bytes that are
// not a well-formed BGZF member, and the stream is unrecoverable.
func parseMember(window []byte) (Member, int, error) {
	if len(window) < fixedHeaderLen {
		return Member{}, 0, errInsufficientData
	}
	if [4]byte(window[:4]) != gzipMagic {
		return Member{}, 0, badFormat("not gzip: bad magic")
	}

	xlen := int(binary.LittleEndian.Uint16(window[10:12]))
	if xlen < 6 {
		return Member{}, 0, badFormat("not BGZF: XLEN too small for BC subfield")
	}
	if window[12] != 'B' || window[13] != 'C' {
		return Member{}, 0, ErrNotBGZF
	}
	slen := int(binary.LittleEndian.Uint16(window[14:16]))
	if slen != 2 {
		return Member{}, 0, badFormat("not BGZF: unexpected BC subfield length")
	}

	bsize := int(binary.LittleEndian.Uint16(window[16:18]))
	payloadLen := bsize + 1 - 12 - xlen - 8
	if payloadLen < 0 || bsize+1 > len(window) {
		return Member{}, 0, errInsufficientData
	}

	payloadOffset := 12 + xlen
	trailerOffset := payloadOffset + payloadLen
	crc := binary.LittleEndian.Uint32(window[trailerOffset : trailerOffset+4])
	isize := binary.LittleEndian.Uint32(window[trailerOffset+4 : trailerOffset+8])

	return Member{
		TotalSize:     bsize + 1,
		PayloadOffset: payloadOffset,
		PayloadLen:    payloadLen,
		InflatedSize:  int(isize),
		CRC32:         crc,
	}, bsize + 1, nil
}

// parseAll repeatedly parses members from the front of window until
// errInsufficientData is returned, which is swallowed: it just means the
// trailing bytes are a torn member awaiting more data. Any other error
// propagates. remainder is the offset of the first unconsumed byte.
func parseAll(window []byte) (members []Member, remainder int, err error) {
	offset := 0
	for offset < len(window) {
		m, n, perr := parseMember(window[offset:])
		if perr == errInsufficientData {
			break
		}
		if perr != nil {
			return members, offset, perr
		}
		m.PayloadOffset += offset
		members = append(members, m)
		offset += n
	}
	return members, offset, nil
}

// emitMember writes one BGZF member to dst: the 12-byte fixed header, the
// 6-byte BC extra subfield (with BSIZE computed from deflated's length),
// the deflated payload, and the 8-byte CRC32/ISIZE trailer.
func emitMember(dst io.Writer, deflated []byte, inflatedLen int, crc uint32) error {
	if len(deflated)+memberOverhead > MaxMemberSize {
		return badFormat("deflated member would exceed maximum BGZF member size")
	}

	var hdr [fixedHeaderLen]byte
	hdr[0], hdr[1], hdr[2], hdr[3] = gzipMagic[0], gzipMagic[1], gzipMagic[2], gzipMagic[3]
	// bytes 4-7 (MTIME) left zero; byte 8 (XFL) left zero; byte 9 (OS) is
	// 0xff, "unknown", matching the teacher's bgzfExtra convention.
	hdr[9] = 0xff
	binary.LittleEndian.PutUint16(hdr[10:12], 6) // XLEN
	copy(hdr[12:18], bgzfExtra[:])

	bsize := memberOverhead + len(deflated) - 1
	binary.LittleEndian.PutUint16(hdr[16:18], uint16(bsize))

	if err := fullWrite(dst, hdr[:]); err != nil {
		return err
	}
	if len(deflated) > 0 {
		if err := fullWrite(dst, deflated); err != nil {
			return err
		}
	}

	var trailer [8]byte
	binary.LittleEndian.PutUint32(trailer[0:4], crc)
	binary.LittleEndian.PutUint32(trailer[4:8], uint32(inflatedLen))
	return fullWrite(dst, trailer[:])
}

// fullWrite writes all of buf to dst, turning a short write -- whether
// reported as n < len(buf) with a nil error, or as an error from
// dst.Write itself -- into ErrShortWrite, so callers can match it with
// errors.Is regardless of how the sink under-wrote.
func fullWrite(dst io.Writer, buf []byte) error {
	n, err := dst.Write(buf)
	if err != nil {
		return shortWrite(err)
	}
	if n < len(buf) {
		return ErrShortWrite
	}
	return nil
}
