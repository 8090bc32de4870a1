package bgzf

import (
	"bytes"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitParseMemberRoundTrip(t *testing.T) {
	for _, deflated := range [][]byte{
		{},
		{0x01, 0x02, 0x03},
		bytes.Repeat([]byte{0xab}, 1000),
	} {
		inflatedLen := len(deflated) * 3
		crc := crc32.ChecksumIEEE(deflated)

		var buf bytes.Buffer
		require.Nil(t, emitMember(&buf, deflated, inflatedLen, crc))

		m, n, err := parseMember(buf.Bytes())
		require.Nil(t, err)
		assert.Equal(t, buf.Len(), n)
		assert.Equal(t, buf.Len(), m.TotalSize)
		assert.Equal(t, inflatedLen, m.InflatedSize)
		assert.Equal(t, crc, m.CRC32)
		assert.Equal(t, deflated, m.payload(buf.Bytes()))
	}
}

func TestParseMemberInsufficientData(t *testing.T) {
	var buf bytes.Buffer
	require.Nil(t, emitMember(&buf, []byte{0x01, 0x02, 0x03}, 9, 42))
	full := buf.Bytes()

	for n := 0; n < len(full); n++ {
		_, _, err := parseMember(full[:n])
		assert.Equal(t, errInsufficientData, err)
	}
}

func TestParseMemberBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.Nil(t, emitMember(&buf, []byte{1, 2, 3}, 9, 42))
	corrupt := append([]byte(nil), buf.Bytes()...)
	corrupt[0] = 0x00
	_, _, err := parseMember(corrupt)
	assert.IsType(t, &BadFormatError{}, err)
}

func TestParseAllMultipleMembersAndRemainder(t *testing.T) {
	var buf bytes.Buffer
	var wantMembers []Member
	for i := 0; i < 3; i++ {
		payload := bytes.Repeat([]byte{byte(i)}, 10*(i+1))
		offset := buf.Len()
		crc := crc32.ChecksumIEEE(payload)
		inflatedLen := len(payload) * 2
		require.Nil(t, emitMember(&buf, payload, inflatedLen, crc))
		wantMembers = append(wantMembers, Member{
			TotalSize:     buf.Len() - offset,
			PayloadOffset: offset + fixedHeaderLen,
			PayloadLen:    len(payload),
			InflatedSize:  inflatedLen,
			CRC32:         crc,
		})
	}
	whole := buf.Bytes()
	torn := append([]byte(nil), whole...)
	torn = append(torn, 0x1f, 0x8b, 0x08, 0x04) // a torn fourth member header

	members, remainder, err := parseAll(torn)
	require.Nil(t, err)
	assert.Equal(t, len(whole), remainder)
	assert.Equal(t, wantMembers, members)
}

func TestParseAllEmptyWindow(t *testing.T) {
	members, remainder, err := parseAll(nil)
	require.Nil(t, err)
	assert.Equal(t, 0, remainder)
	assert.Equal(t, 0, len(members))
}
