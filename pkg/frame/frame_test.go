package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/itohio/adcstream/pkg/acq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stream runs a sampler for ticks ticks with value = tick*100 + channel and returns the wire bytes.
func stream(t *testing.T, geo acq.Geometry, ticks int) []byte {
	t.Helper()

	buf, err := acq.NewBuffer(geo)
	require.NoError(t, err)

	tick := 0
	src := acq.SourceFunc(func(ch int) uint16 { return uint16(tick*100 + ch) })

	var out bytes.Buffer
	s := acq.NewSampler(buf, src, &out)
	for tick = 1; tick <= ticks; tick++ {
		s.Tick()
	}
	return out.Bytes()
}

func TestDecode(t *testing.T) {
	assert.Equal(t, []uint16{10, 20, 0x1234}, Decode([]byte{10, 0, 20, 0, 0x34, 0x12}))
	assert.Equal(t, []uint16{0xFFFF}, Decode([]byte{0xFF, 0xFF, 0x01}))
	assert.Empty(t, Decode(nil))
}

func TestDecoder_Scenario(t *testing.T) {
	wire := []byte{
		1, 10, 0, 20, 0,
		2, 100, 0, 200, 0,
		1, 30, 0, 40, 0,
		2, 0x2C, 0x01, 0x90, 0x01,
	}
	geo := acq.Geometry{Channels: 2, BufferSize: 8, Partitions: 2}
	dec := NewDecoder(bytes.NewReader(wire), geo)

	want := []Frame{
		{Channel: 1, Seq: 0, Samples: []uint16{10, 20}},
		{Channel: 2, Seq: 0, Samples: []uint16{100, 200}},
		{Channel: 1, Seq: 1, Samples: []uint16{30, 40}},
		{Channel: 2, Seq: 1, Samples: []uint16{300, 400}},
	}
	for _, w := range want {
		got, err := dec.Next()
		require.NoError(t, err)
		assert.Equal(t, w.Channel, got.Channel)
		assert.Equal(t, w.Seq, got.Seq)
		assert.Equal(t, w.Samples, got.Samples)
		assert.Len(t, got.Data, geo.PartitionSize())
	}

	_, err := dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoder_SamplerStream(t *testing.T) {
	geo := acq.Geometry{Channels: 7, BufferSize: 40, Partitions: 2}
	ticks := 3 * geo.TicksPerCycle()
	dec := NewDecoder(bytes.NewReader(stream(t, geo, ticks)), geo)

	spp := geo.SamplesPerPartition()
	emissions := ticks / spp
	for e := range emissions {
		for ch := range geo.Channels {
			f, err := dec.Next()
			require.NoError(t, err)
			require.Equal(t, ch+1, f.Channel)
			require.Equal(t, uint64(e), f.Seq)
			for i, v := range f.Samples {
				assert.Equal(t, uint16((e*spp+i+1)*100+ch), v)
			}
		}
	}
}

func TestDecoder_OutOfSyncAndResync(t *testing.T) {
	geo := acq.Geometry{Channels: 2, BufferSize: 8, Partitions: 2}
	wire := append([]byte{0x09, 0x33}, stream(t, geo, 8)...)
	dec := NewDecoder(bytes.NewReader(wire), geo)

	_, err := dec.Next()
	var oos *OutOfSyncError
	require.True(t, errors.As(err, &oos))
	assert.Equal(t, byte(1), oos.Want)
	assert.Equal(t, byte(0x09), oos.Got)
	assert.Contains(t, err.Error(), "expected tag 1")

	require.NoError(t, dec.Resync())

	f, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, f.Channel)
	assert.Equal(t, []uint16{100, 200}, f.Samples)
}

func TestDecoder_ResyncMidStream(t *testing.T) {
	geo := acq.Geometry{Channels: 3, BufferSize: 8, Partitions: 2}
	wire := stream(t, geo, 12)

	// Start in the middle of the second frame.
	dec := NewDecoder(bytes.NewReader(wire[geo.FrameSize()+2:]), geo)

	_, err := dec.Next()
	var oos *OutOfSyncError
	require.ErrorAs(t, err, &oos)

	require.NoError(t, dec.Resync())
	f, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, f.Channel)
	assert.Equal(t, []uint16{300, 400}, f.Samples, "second emission")

	f, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, f.Channel)
}

func TestDecoder_ResyncSingleChannel(t *testing.T) {
	geo := acq.Geometry{Channels: 1, BufferSize: 4, Partitions: 2}
	wire := append([]byte{0x07}, stream(t, geo, 6)...)
	dec := NewDecoder(bytes.NewReader(wire), geo)

	_, err := dec.Next()
	require.Error(t, err)
	require.NoError(t, dec.Resync())

	for i := range 3 {
		f, err := dec.Next()
		require.NoError(t, err)
		assert.Equal(t, 1, f.Channel)
		assert.Equal(t, uint64(i), f.Seq)
	}
}

func TestDecoder_ResyncGivesUp(t *testing.T) {
	geo := acq.Geometry{Channels: 2, BufferSize: 8, Partitions: 2}
	dec := NewDecoder(bytes.NewReader(make([]byte, 200)), geo)

	assert.ErrorIs(t, dec.Resync(), ErrNoSync)
}

func TestDecoder_TruncatedFrame(t *testing.T) {
	geo := acq.Geometry{Channels: 2, BufferSize: 8, Partitions: 2}
	wire := stream(t, geo, 2)
	dec := NewDecoder(bytes.NewReader(wire[:geo.FrameSize()+3]), geo)

	_, err := dec.Next()
	require.NoError(t, err)

	_, err = dec.Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
