package main

import (
	"context"
	"fmt"

	"github.com/itohio/adcstream/pkg/acq"
	"github.com/itohio/adcstream/pkg/config"
	"github.com/itohio/adcstream/pkg/device"
	"github.com/itohio/adcstream/pkg/frame"
	"github.com/itohio/adcstream/pkg/record"
	"github.com/itohio/adcstream/pkg/sample"
	"go.uber.org/zap"
)

const previewPoints = 8

type options struct {
	dump      bool
	ticks     int
	maxFrames int
}

// statser is implemented by devices that can report sampler budget counters.
type statser interface {
	Stats() acq.Stats
}

// run sends the start-up commands, then converts and records blocks until ctx
// is done, the frame limit is reached, or the device closes its frames channel.
func run(ctx context.Context, dev device.Device, cfg *config.Config, logger *zap.Logger, rec *record.Recorder, opts options) error {
	for range opts.ticks {
		if err := dev.RequestTick(); err != nil {
			return fmt.Errorf("failed to request tick: %w", err)
		}
	}
	if opts.dump {
		if err := dev.RequestDump(); err != nil {
			return fmt.Errorf("failed to request dump: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	blocks := sample.NewConverter(cfg, 0)(limit(ctx, dev.Frames(), opts.maxFrames))
	if cfg.Output.AverageBlocks > 1 {
		blocks = sample.NewAveragingConverter(cfg.Output.AverageBlocks, 0)(blocks)
	}

	var (
		total   uint64
		lost    uint64
		next    = make(map[int]uint64)
		preview = make([]float32, 0, previewPoints)
	)
	for b := range blocks {
		total++
		if b.Seq != next[b.Channel] {
			lost += b.Seq - next[b.Channel]
			logger.Warn("blocks lost",
				zap.Int("channel", b.Channel),
				zap.Uint64("expected", next[b.Channel]),
				zap.Uint64("got", b.Seq),
			)
		}
		next[b.Channel] = b.Seq + 1

		if ce := logger.Check(zap.DebugLevel, "block"); ce != nil {
			s := sample.Summarize(b.Volts)
			preview = b.Preview(preview, previewPoints)
			ce.Write(
				zap.Int("channel", b.Channel),
				zap.Uint64("seq", b.Seq),
				zap.Float32("min", s.Min),
				zap.Float32("max", s.Max),
				zap.Float32("mean", s.Mean),
				zap.Float32("rms", s.RMS),
				zap.Float32s("preview", preview),
			)
		}

		if rec != nil {
			if err := rec.Write(b); err != nil {
				cancel()
				for range blocks {
				}
				return fmt.Errorf("failed to record block: %w", err)
			}
		}
	}

	fields := []zap.Field{
		zap.Uint64("blocks", total),
		zap.Uint64("lost", lost),
	}
	if s, ok := dev.(statser); ok {
		st := s.Stats()
		fields = append(fields,
			zap.Uint64("ticks", st.Ticks),
			zap.Uint64("emissions", st.Emissions),
			zap.Uint64("shortWrites", st.ShortWrites),
			zap.Duration("maxTick", st.MaxTick),
			zap.Duration("maxEmit", st.MaxEmit),
		)
		if st.Overrun(cfg.Acquisition.TickInterval) {
			logger.Warn("tick work exceeded the tick interval; sample rate degraded",
				zap.Duration("maxTick", st.MaxTick),
				zap.Duration("tickInterval", cfg.Acquisition.TickInterval),
			)
		}
	}
	logger.Info("acquisition finished", fields...)

	return nil
}

// limit forwards at most n frames (n <= 0 means no limit) and closes its output
// when ctx is done, the limit is reached, or in closes.
func limit(ctx context.Context, in <-chan frame.Frame, n int) <-chan frame.Frame {
	out := make(chan frame.Frame)

	go func() {
		defer close(out)

		for count := 0; n <= 0 || count < n; count++ {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
