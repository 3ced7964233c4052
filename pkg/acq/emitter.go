package acq

import "io"

// Emitter writes completed partitions to the sink as tagged frames.
// Frame layout: one tag byte (channel index + 1) followed by PartitionSize raw bytes.
// Frames of one partition go out in ascending channel order.
type Emitter struct {
	w   io.Writer
	tag [1]byte

	frames      uint64
	shortWrites uint64
}

// NewEmitter creates an Emitter writing to w.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit writes one frame per channel for the partition starting at offset.
//
// Precondition: offset is partition-aligned and the Sampler will not write into
// that partition until Emit returns. Emit runs on the Sampler's execution context;
// it is not safe to call concurrently with Tick.
//
// The sink is not retried. A failed or short write is counted and the remaining
// frames are still attempted.
func (e *Emitter) Emit(buf *Buffer, offset int) {
	for ch := range buf.geo.Channels {
		e.tag[0] = byte(ch + 1)
		e.write(e.tag[:])
		e.write(buf.Partition(ch, offset))
		e.frames++
	}
}

func (e *Emitter) write(p []byte) {
	n, err := e.w.Write(p)
	if err != nil || n != len(p) {
		e.shortWrites++
	}
}

// Frames returns the number of frames emitted so far.
func (e *Emitter) Frames() uint64 {
	return e.frames
}

// ShortWrites returns the number of sink writes that failed or were truncated.
func (e *Emitter) ShortWrites() uint64 {
	return e.shortWrites
}
