package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// SilenceFrame is an Opus frame of silence. A few of these are sent after a
// clip so the receiving client does not interpolate the last frame.
var SilenceFrame = []byte{0xF8, 0xFF, 0xFE}

var ErrNotOgg = errors.New("not an ogg stream")

const (
	capturePattern = "OggS"
	pageHeaderSize = 27
	flagContinued  = 0x01
	maxLacingValue = 255
	opusHeadMagic  = "OpusHead"
	opusTagsMagic  = "OpusTags"
)

// OpusReader yields Opus packets from an Ogg Opus stream. Pages belonging to
// any logical stream other than the first are skipped. CRCs are not checked.
type OpusReader struct {
	r       *bufio.Reader
	pending [][]byte
	partial []byte
	pages   int

	serial     uint32
	haveSerial bool
}

func NewOpusReader(r io.Reader) *OpusReader {
	return &OpusReader{r: bufio.NewReader(r)}
}

// Next returns the next audio packet, skipping the OpusHead and OpusTags
// header packets. It returns io.EOF after the last packet.
func (o *OpusReader) Next() ([]byte, error) {
	for {
		if len(o.pending) > 0 {
			p := o.pending[0]
			o.pending = o.pending[1:]
			if len(p) == 0 || isHeaderPacket(p) {
				continue
			}
			return p, nil
		}
		if err := o.readPage(); err != nil {
			return nil, err
		}
	}
}

func (o *OpusReader) readPage() error {
	var hdr [pageHeaderSize]byte
	if _, err := io.ReadFull(o.r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) && len(o.partial) == 0 {
			return io.EOF
		}
		return fmt.Errorf("read ogg page %d header: %w", o.pages, unexpected(err))
	}
	if string(hdr[:4]) != capturePattern {
		return fmt.Errorf("page %d: %w", o.pages, ErrNotOgg)
	}
	if version := hdr[4]; version != 0 {
		return fmt.Errorf("page %d: unsupported ogg version %d", o.pages, version)
	}
	serial := binary.LittleEndian.Uint32(hdr[14:18])

	lacing := make([]byte, int(hdr[26]))
	if _, err := io.ReadFull(o.r, lacing); err != nil {
		return fmt.Errorf("read ogg page %d segment table: %w", o.pages, unexpected(err))
	}
	size := 0
	for _, l := range lacing {
		size += int(l)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(o.r, payload); err != nil {
		return fmt.Errorf("read ogg page %d payload: %w", o.pages, unexpected(err))
	}

	if !o.haveSerial {
		o.serial, o.haveSerial = serial, true
	}
	o.pages++
	if serial != o.serial {
		return nil
	}

	if hdr[5]&flagContinued == 0 && len(o.partial) > 0 {
		// The previous packet was never finished; drop it.
		o.partial = nil
	}
	off := 0
	for _, l := range lacing {
		o.partial = append(o.partial, payload[off:off+int(l)]...)
		off += int(l)
		if l < maxLacingValue {
			o.pending = append(o.pending, o.partial)
			o.partial = nil
		}
	}
	return nil
}

func isHeaderPacket(p []byte) bool {
	return bytes.HasPrefix(p, []byte(opusHeadMagic)) || bytes.HasPrefix(p, []byte(opusTagsMagic))
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
