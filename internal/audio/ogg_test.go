package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	serial    uint32
	continued bool
	segments  [][]byte
	// open leaves the last segment's packet unterminated.
	open bool
}

func writePages(t *testing.T, pages ...page) []byte {
	t.Helper()
	var buf bytes.Buffer
	for seq, p := range pages {
		var lacing []byte
		var payload []byte
		for i, seg := range p.segments {
			n := len(seg)
			for n >= maxLacingValue {
				lacing = append(lacing, maxLacingValue)
				n -= maxLacingValue
			}
			last := i == len(p.segments)-1
			if !(last && p.open) {
				lacing = append(lacing, byte(n))
			}
			payload = append(payload, seg...)
		}
		require.LessOrEqual(t, len(lacing), 255)

		hdr := make([]byte, pageHeaderSize)
		copy(hdr, capturePattern)
		if p.continued {
			hdr[5] = flagContinued
		}
		binary.LittleEndian.PutUint32(hdr[14:18], p.serial)
		binary.LittleEndian.PutUint32(hdr[18:22], uint32(seq))
		hdr[26] = byte(len(lacing))
		buf.Write(hdr)
		buf.Write(lacing)
		buf.Write(payload)
	}
	return buf.Bytes()
}

func readAll(t *testing.T, data []byte) ([][]byte, error) {
	t.Helper()
	r := NewOpusReader(bytes.NewReader(data))
	var out [][]byte
	for {
		p, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
}

func TestOpusReaderSkipsHeaderPackets(t *testing.T) {
	data := writePages(t,
		page{segments: [][]byte{[]byte("OpusHead\x01\x02")}},
		page{segments: [][]byte{[]byte("OpusTags vendor")}},
		page{segments: [][]byte{{1, 2, 3}, {4, 5}}},
		page{segments: [][]byte{{6}}},
	)
	packets, err := readAll(t, data)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{1, 2, 3}, {4, 5}, {6}}, packets)
}

func TestOpusReaderJoinsPacketsAcrossPages(t *testing.T) {
	big := bytes.Repeat([]byte{0xAB}, 600)
	data := writePages(t,
		page{segments: [][]byte{big[:510]}, open: true},
		page{continued: true, segments: [][]byte{big[510:], {9}}},
	)
	packets, err := readAll(t, data)
	require.NoError(t, err)
	require.Len(t, packets, 2)
	assert.Equal(t, big, packets[0])
	assert.Equal(t, []byte{9}, packets[1])
}

func TestOpusReaderPacketOfExactlyOneLacingUnit(t *testing.T) {
	exact := bytes.Repeat([]byte{0x01}, maxLacingValue)
	packets, err := readAll(t, writePages(t, page{segments: [][]byte{exact, {2}}}))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{exact, {2}}, packets)
}

func TestOpusReaderIgnoresOtherStreams(t *testing.T) {
	data := writePages(t,
		page{serial: 7, segments: [][]byte{{1}}},
		page{serial: 8, segments: [][]byte{{99}}},
		page{serial: 7, segments: [][]byte{{2}}},
	)
	packets, err := readAll(t, data)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{1}, {2}}, packets)
}

func TestOpusReaderDropsUnfinishedPacket(t *testing.T) {
	data := writePages(t,
		page{segments: [][]byte{bytes.Repeat([]byte{0xEE}, 255)}, open: true},
		page{segments: [][]byte{{3}}},
	)
	packets, err := readAll(t, data)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{3}}, packets)
}

func TestOpusReaderRejectsNonOgg(t *testing.T) {
	_, err := readAll(t, bytes.Repeat([]byte("RIFF"), 10))
	require.ErrorIs(t, err, ErrNotOgg)
}

func TestOpusReaderTruncatedPage(t *testing.T) {
	data := writePages(t, page{segments: [][]byte{{1, 2, 3, 4}}})
	_, err := readAll(t, data[:len(data)-2])
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestOpusReaderEmptyInput(t *testing.T) {
	packets, err := readAll(t, nil)
	require.NoError(t, err)
	assert.Empty(t, packets)
}
