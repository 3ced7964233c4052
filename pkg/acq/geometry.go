package acq

import (
	"errors"
	"fmt"
)

// Errors returned by Geometry.Validate, wrapped with the offending value.
var (
	// ErrChannels: channel count outside [1, MaxChannels].
	ErrChannels = errors.New("channel count")
	// ErrBufferSize: buffer size odd or below one sample.
	ErrBufferSize = errors.New("buffer size")
	// ErrPartitions: fewer than one partition.
	ErrPartitions = errors.New("partition count")
	// ErrPartitionAlignment: partitions unequal or a sample would straddle a boundary.
	ErrPartitionAlignment = errors.New("partition alignment")
)

// MaxChannels is the largest channel count whose 1-based tag still fits in a byte.
const MaxChannels = 255

// Geometry describes the fixed shape of the acquisition buffers.
type Geometry struct {
	Channels   int // Number of analog inputs sampled every tick
	BufferSize int // Bytes per channel buffer (two bytes per sample)
	Partitions int // Number of equal emission segments per buffer
}

// DefaultGeometry is the reference configuration: 7 channels, 700 bytes, double-buffered.
var DefaultGeometry = Geometry{
	Channels:   7,
	BufferSize: 700,
	Partitions: 2,
}

// Validate rejects geometries where a sample would straddle a partition boundary
// or a channel tag would not fit in one byte.
func (g Geometry) Validate() error {
	if g.Channels < 1 || g.Channels > MaxChannels {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrChannels, g.Channels, MaxChannels)
	}
	if g.BufferSize < 2 || g.BufferSize%2 != 0 {
		return fmt.Errorf("%w: %d must be even and at least 2", ErrBufferSize, g.BufferSize)
	}
	if g.Partitions < 1 {
		return fmt.Errorf("%w: %d must be at least 1", ErrPartitions, g.Partitions)
	}
	if g.BufferSize%g.Partitions != 0 {
		return fmt.Errorf("%w: buffer size %d not divisible by %d partitions", ErrPartitionAlignment, g.BufferSize, g.Partitions)
	}
	if g.PartitionSize()%2 != 0 {
		return fmt.Errorf("%w: partition size %d is odd", ErrPartitionAlignment, g.PartitionSize())
	}
	return nil
}

// PartitionSize returns the number of bytes in one partition.
func (g Geometry) PartitionSize() int {
	return g.BufferSize / g.Partitions
}

// SamplesPerPartition returns the number of 16-bit samples in one partition.
func (g Geometry) SamplesPerPartition() int {
	return g.PartitionSize() / 2
}

// FrameSize returns the on-wire length of one frame: tag byte plus partition bytes.
func (g Geometry) FrameSize() int {
	return 1 + g.PartitionSize()
}

// EmissionSize returns the bytes written for one partition across all channels.
func (g Geometry) EmissionSize() int {
	return g.Channels * g.FrameSize()
}

// TicksPerCycle returns the number of ticks for the cursor to return to zero.
func (g Geometry) TicksPerCycle() int {
	return g.BufferSize / 2
}
