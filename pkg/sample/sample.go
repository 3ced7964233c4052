package sample

import (
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/adcstream/pkg/config"
	"github.com/itohio/adcstream/pkg/frame"
)

// Block is one channel's partition converted to physical values.
type Block struct {
	Channel   int           // 1-based channel tag
	Seq       uint64        // Per-channel block counter
	Timestamp time.Time     // Host receive time, i.e. roughly the time of the last sample
	Period    time.Duration // Time between consecutive samples
	Raw       []uint16      // ADC counts
	Volts     []float32     // Raw converted using the ADC reference and resolution
}

// SampleTime returns the estimated acquisition time of sample i.
func (b Block) SampleTime(i int) time.Time {
	return b.Timestamp.Add(-time.Duration(len(b.Raw)-1-i) * b.Period)
}

// Summary holds simple statistics over a block.
type Summary struct {
	Min  float32
	Max  float32
	Mean float32
	RMS  float32
}

// Summarize computes min, max, mean and RMS of v. An empty slice yields zeros.
func Summarize(v []float32) Summary {
	if len(v) == 0 {
		return Summary{}
	}

	s := Summary{Min: math32.Inf(1), Max: math32.Inf(-1)}
	var sum, sumSq float32
	for _, x := range v {
		s.Min = math32.Min(s.Min, x)
		s.Max = math32.Max(s.Max, x)
		sum += x
		sumSq += x * x
	}

	n := float32(len(v))
	s.Mean = sum / n
	s.RMS = math32.Sqrt(sumSq / n)
	return s
}

// Preview reduces b.Volts to at most points values, each the mean of an equal
// share of consecutive samples. The result reuses dst when it has capacity.
func (b Block) Preview(dst []float32, points int) []float32 {
	dst = dst[:0]
	n := len(b.Volts)
	if points <= 0 || n == 0 {
		return dst
	}
	if n <= points {
		return append(dst, b.Volts...)
	}

	for i := range points {
		lo, hi := i*n/points, (i+1)*n/points
		var sum float32
		for _, v := range b.Volts[lo:hi] {
			sum += v
		}
		dst = append(dst, sum/float32(hi-lo))
	}
	return dst
}

// Converter is a function type that converts a Frame channel to a Block channel.
type Converter func(in <-chan frame.Frame) <-chan Block

// NewConverter creates a converter function that transforms Frames to Blocks.
// The output channel is closed when the input channel closes.
func NewConverter(cfg *config.Config, bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan frame.Frame) <-chan Block {
		out := make(chan Block, bufSize)

		go func() {
			defer close(out)

			for f := range in {
				out <- convertFrame(f, time.Now(), cfg)
			}
		}()

		return out
	}
}

// convertFrame converts a Frame to a Block using configuration.
func convertFrame(f frame.Frame, now time.Time, cfg *config.Config) Block {
	volts := make([]float32, len(f.Samples))
	for i, raw := range f.Samples {
		volts[i] = adcToVoltage(raw, cfg.ADC.VRef, cfg.ADC.Resolution)
	}

	return Block{
		Channel:   f.Channel,
		Seq:       f.Seq,
		Timestamp: now,
		Period:    cfg.Acquisition.TickInterval,
		Raw:       f.Samples,
		Volts:     volts,
	}
}

// adcToVoltage converts an ADC reading with the given resolution to volts.
func adcToVoltage(adc uint16, vref float32, resolution int) float32 {
	fullScale := float32(uint32(1)<<resolution - 1)
	return float32(adc) / fullScale * vref
}
