package acq

// Buffer holds one fixed-size byte ring per channel and the write cursor they share.
// It is allocated once and never resized. Only the Sampler that owns it may write.
type Buffer struct {
	geo    Geometry
	data   [][]byte
	cursor int
}

// NewBuffer validates geo and allocates all channel buffers from a single backing array.
func NewBuffer(geo Geometry) (*Buffer, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}

	backing := make([]byte, geo.Channels*geo.BufferSize)
	data := make([][]byte, geo.Channels)
	for i := range data {
		start := i * geo.BufferSize
		data[i] = backing[start : start+geo.BufferSize : start+geo.BufferSize]
	}

	return &Buffer{
		geo:  geo,
		data: data,
	}, nil
}

// Geometry returns the buffer shape.
func (b *Buffer) Geometry() Geometry {
	return b.geo
}

// Cursor returns the current write offset. Between ticks it is in [0, BufferSize).
func (b *Buffer) Cursor() int {
	return b.cursor
}

// Channel returns the whole ring for channel ch (0-based). Callers must not modify it.
func (b *Buffer) Channel(ch int) []byte {
	return b.data[ch]
}

// Partition returns the partition of channel ch starting at offset.
func (b *Buffer) Partition(ch, offset int) []byte {
	end := offset + b.geo.PartitionSize()
	return b.data[ch][offset:end:end]
}

// put stores v little-endian at the cursor of channel ch.
func (b *Buffer) put(ch int, v uint16) {
	b.data[ch][b.cursor] = byte(v)
	b.data[ch][b.cursor+1] = byte(v >> 8)
}

// step moves the cursor by one sample. When the new cursor lands on a partition
// boundary it reports the start of the partition just completed. The cursor is
// left unwrapped so that returning to zero reports the last partition; wrap must
// follow.
func (b *Buffer) step() (completed int, boundary bool) {
	b.cursor += 2
	ps := b.geo.PartitionSize()
	if b.cursor%ps == 0 {
		return b.cursor - ps, true
	}
	return 0, false
}

func (b *Buffer) wrap() {
	b.cursor %= b.geo.BufferSize
}
