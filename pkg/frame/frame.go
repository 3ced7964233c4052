package frame

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/itohio/adcstream/pkg/acq"
)

// ErrNoSync is returned by Resync when no frame boundary is found within the search window.
var ErrNoSync = errors.New("no frame boundary found")

// Frame is one channel's partition as received from the wire.
type Frame struct {
	Channel int      // 1-based tag as sent on the wire
	Seq     uint64   // Per-channel frame counter since the decoder was created
	Data    []byte   // Raw partition bytes
	Samples []uint16 // Data decoded little-endian
}

// OutOfSyncError reports a tag that does not match the expected channel order.
type OutOfSyncError struct {
	Want byte
	Got  byte
}

func (e *OutOfSyncError) Error() string {
	return fmt.Sprintf("out of sync: expected tag %d, got %d", e.Want, e.Got)
}

// Decoder reads tagged frames from a byte stream with a known geometry.
type Decoder struct {
	r    *bufio.Reader
	geo  acq.Geometry
	want byte
	seq  []uint64

	// frames checked by Resync before a position is accepted
	probe int
}

// NewDecoder creates a Decoder for the stream r. The geometry must be the one
// the sender was built with; it is not carried on the wire.
func NewDecoder(r io.Reader, geo acq.Geometry) *Decoder {
	probe := max(geo.Channels, 2)
	size := max(4096, 2*probe*geo.FrameSize())

	return &Decoder{
		r:     bufio.NewReaderSize(r, size),
		geo:   geo,
		want:  1,
		seq:   make([]uint64, geo.Channels),
		probe: probe,
	}
}

// Next reads one frame. A tag out of the expected ascending order yields an
// *OutOfSyncError and is left unread; call Resync before reading further.
func (d *Decoder) Next() (Frame, error) {
	b, err := d.r.Peek(1)
	if err != nil {
		return Frame{}, err
	}
	tag := b[0]
	if tag != d.want {
		return Frame{}, &OutOfSyncError{Want: d.want, Got: tag}
	}
	if _, err := d.r.Discard(1); err != nil {
		return Frame{}, err
	}

	data := make([]byte, d.geo.PartitionSize())
	if _, err := io.ReadFull(d.r, data); err != nil {
		return Frame{}, fmt.Errorf("failed to read frame for channel %d: %w", tag, err)
	}

	ch := int(tag) - 1
	f := Frame{
		Channel: int(tag),
		Seq:     d.seq[ch],
		Data:    data,
		Samples: Decode(data),
	}
	d.seq[ch]++
	d.want = byte(int(tag)%d.geo.Channels + 1)

	return f, nil
}

// Resync discards bytes until the stream is positioned on a channel 1 frame whose
// following frames carry the expected tags. Sample bytes can mimic tags, so a
// boundary is only accepted when several consecutive tags line up.
func (d *Decoder) Resync() error {
	fs := d.geo.FrameSize()
	window := d.probe * fs
	limit := 4 * d.geo.EmissionSize()

	for skipped := 0; skipped <= limit; skipped++ {
		b, err := d.r.Peek(window)
		if err != nil {
			return err
		}
		if d.aligned(b) {
			d.want = 1
			return nil
		}
		if _, err := d.r.Discard(1); err != nil {
			return err
		}
	}

	return ErrNoSync
}

func (d *Decoder) aligned(b []byte) bool {
	fs := d.geo.FrameSize()
	for k := range d.probe {
		if b[k*fs] != byte(k%d.geo.Channels+1) {
			return false
		}
	}
	return true
}

// Decode converts little-endian sample bytes to values. A trailing odd byte is ignored.
func Decode(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(data[2*i:])
	}
	return out
}
