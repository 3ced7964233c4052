package device

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/chewxy/math32"
	"github.com/itohio/adcstream/pkg/acq"
	"github.com/itohio/adcstream/pkg/config"
	"github.com/itohio/adcstream/pkg/frame"
	"go.uber.org/zap"
)

// Mock runs the acquisition core in-process against synthetic waveforms and
// decodes its output exactly as Serial decodes the MCU stream.
type Mock struct {
	cfg    *config.Config
	logger *zap.Logger

	frames   chan frame.Frame
	commands chan byte
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	pw       *io.PipeWriter

	connected bool

	statsMu sync.Mutex
	stats   acq.Stats
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.Config, logger *zap.Logger) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:      cfg,
		logger:   logger.With(zap.String("port", "mock")),
		frames:   make(chan frame.Frame, DefaultBufferSize),
		commands: make(chan byte, 16),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connect starts the simulated sampler and the decoder.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrConnected
	}

	geo := m.cfg.Geometry()
	buf, err := acq.NewBuffer(geo)
	if err != nil {
		return fmt.Errorf("invalid geometry: %w", err)
	}

	// A closed mock gets a fresh context and frames channel.
	if m.ctx.Err() != nil {
		m.ctx, m.cancel = context.WithCancel(context.Background())
		m.frames = make(chan frame.Frame, DefaultBufferSize)
		m.statsMu.Lock()
		m.stats = acq.Stats{}
		m.statsMu.Unlock()
	}

	pr, pw := io.Pipe()
	m.pw = pw

	// Unpaced sampler; runSampler waits on the ticker after publishing stats.
	trigger := m.cfg.Trigger()
	sampler := acq.NewSampler(buf, newWaveform(m.cfg), pw, acq.WithTrigger(trigger))
	pacer := acq.NoPacing
	var ticker *acq.Ticker
	if trigger == acq.TriggerAuto {
		ticker = acq.NewTicker(m.cfg.Acquisition.TickInterval)
		pacer = ticker
	}

	m.connected = true
	m.wg.Add(2)

	ctx, frames := m.ctx, m.frames
	go func() {
		defer m.wg.Done()
		if ticker != nil {
			defer ticker.Stop()
		}
		m.runSampler(ctx, sampler, pacer)
	}()

	go func() {
		defer m.wg.Done()
		decode(ctx, frame.NewDecoder(pr, geo), frames, m.logger)
		pr.Close()
	}()

	m.logger.Info("connected",
		zap.Stringer("trigger", trigger),
		zap.Duration("tickInterval", m.cfg.Acquisition.TickInterval),
		zap.Int("channels", geo.Channels),
	)

	return nil
}

// Close stops the sampler and decoder and closes the frames channel.
func (m *Mock) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	defer m.mu.Unlock()

	m.cancel()
	m.pw.Close()
	m.wg.Wait()

	m.connected = false
	close(m.frames)

	return nil
}

// Frames returns the channel of decoded frames. A Connect after Close replaces it.
func (m *Mock) Frames() <-chan frame.Frame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frames
}

// RequestDump asks the simulated sampler to emit its whole buffer.
func (m *Mock) RequestDump() error {
	return m.command(acq.CmdDump)
}

// RequestTick asks the simulated sampler to take one sample.
func (m *Mock) RequestTick() error {
	return m.command(acq.CmdTick)
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Stats returns the sampler budget counters as of the last tick.
func (m *Mock) Stats() acq.Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

func (m *Mock) command(cmd byte) error {
	m.mu.RLock()
	connected, ctx := m.connected, m.ctx
	m.mu.RUnlock()

	if !connected {
		return ErrNotConnected
	}

	select {
	case m.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ErrNotConnected
	}
}

// runSampler is the single execution context of the simulated MCU. Commands
// are applied between ticks, never during one. Stats are published as soon as
// the work of a tick is done and before pacing.
func (m *Mock) runSampler(ctx context.Context, s *acq.Sampler, pacer acq.Pacer) {
	auto := s.Trigger() == acq.TriggerAuto
	for {
		ticked := false
		if auto {
			select {
			case <-ctx.Done():
				return
			case cmd := <-m.commands:
				s.Handle(cmd)
			default:
				s.Tick()
				ticked = true
			}
		} else {
			select {
			case <-ctx.Done():
				return
			case cmd := <-m.commands:
				s.Handle(cmd)
			}
		}

		m.statsMu.Lock()
		m.stats = s.Stats()
		m.statsMu.Unlock()

		if ticked {
			pacer.Wait()
		}
	}
}

// waveform produces one sine per channel; channel i runs at (i+1) times the base
// frequency. Time advances by one tick interval after the last channel is read.
type waveform struct {
	fullScale float32
	freq      float32
	amplitude float32
	offset    float32
	noise     float32
	dt        float32
	channels  int

	n int
}

func newWaveform(cfg *config.Config) *waveform {
	return &waveform{
		fullScale: float32(uint32(1)<<cfg.ADC.Resolution - 1),
		freq:      cfg.Mock.Frequency,
		amplitude: cfg.Mock.Amplitude,
		offset:    cfg.Mock.Offset,
		noise:     cfg.Mock.NoiseLevel,
		dt:        float32(cfg.Acquisition.TickInterval.Seconds()),
		channels:  cfg.Acquisition.Channels,
	}
}

func (w *waveform) Read(ch int) uint16 {
	t := float32(w.n) * w.dt
	phase := 2 * math32.Pi * w.freq * float32(ch+1) * t

	// Deterministic pseudo-noise, uncorrelated with the signal frequency.
	noise := (math32.Sin(float32(w.n)*1.7+float32(ch)) + math32.Cos(float32(w.n)*2.3)) * 0.5 * w.noise

	v := (w.offset + w.amplitude*math32.Sin(phase) + noise) * w.fullScale
	v = math32.Max(0, math32.Min(v, w.fullScale))

	if ch == w.channels-1 {
		w.n++
	}
	return uint16(v + 0.5)
}
