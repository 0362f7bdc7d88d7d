package discordbot

import (
	"bufio"
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
)

const (
	oggHeaderSize  = 27
	oggMaxSegments = 255
	maxPacketSize  = 64 * 1024
)

var oggCapture = []byte("OggS")

// oggReader splits an Ogg/Opus stream into Opus packets.
type oggReader struct {
	reader   *bufio.Reader
	header   [oggHeaderSize]byte
	segments [oggMaxSegments]byte
	packet   bytes.Buffer
	pending  [][]byte
}

func newOggReader(r io.Reader) *oggReader {
	return &oggReader{reader: bufio.NewReaderSize(r, 16384)}
}

// ReadPacket returns the next audio packet. OpusHead and OpusTags are skipped.
// Packets spanning several pages are reassembled.
func (o *oggReader) ReadPacket() ([]byte, error) {
	for len(o.pending) == 0 {
		if err := o.readPage(); err != nil {
			return nil, err
		}
	}
	p := o.pending[0]
	o.pending = o.pending[1:]
	return p, nil
}

func (o *oggReader) readPage() error {
	// Resync on the capture pattern
	for {
		sig, err := o.reader.Peek(len(oggCapture))
		if err != nil {
			return err
		}
		if bytes.Equal(sig, oggCapture) {
			break
		}
		if _, err := o.reader.Discard(1); err != nil {
			return err
		}
	}

	if _, err := io.ReadFull(o.reader, o.header[:]); err != nil {
		return unexpected(err)
	}
	n := int(o.header[26])
	table := o.segments[:n]
	if _, err := io.ReadFull(o.reader, table); err != nil {
		return unexpected(err)
	}

	for _, size := range table {
		if _, err := io.CopyN(&o.packet, o.reader, int64(size)); err != nil {
			return unexpected(err)
		}
		if o.packet.Len() > maxPacketSize {
			return errors.Newf("ogg packet exceeds %d bytes", maxPacketSize)
		}
		if size == 255 {
			continue
		}

		packet := make([]byte, o.packet.Len())
		copy(packet, o.packet.Bytes())
		o.packet.Reset()

		if isOpusHeader(packet) {
			continue
		}
		o.pending = append(o.pending, packet)
	}
	return nil
}

func isOpusHeader(p []byte) bool {
	return bytes.HasPrefix(p, []byte("OpusHead")) || bytes.HasPrefix(p, []byte("OpusTags"))
}

// A stream cut inside a page is truncated, not finished.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
