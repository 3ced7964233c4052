package acq

import (
	"context"
	"io"
	"time"
)

// Trigger selects when partitions are emitted.
type Trigger int

const (
	// TriggerAuto emits each partition at the tick that completes it.
	TriggerAuto Trigger = iota
	// TriggerManual never emits on its own; emission happens only through Dump.
	TriggerManual
)

func (t Trigger) String() string {
	switch t {
	case TriggerAuto:
		return "auto"
	case TriggerManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Stats records per-tick cost so the tick budget can be checked.
type Stats struct {
	Ticks       uint64
	Emissions   uint64
	Frames      uint64
	ShortWrites uint64

	LastEmit time.Duration
	MaxEmit  time.Duration
	LastTick time.Duration // Sampling plus emission, excluding the pacer wait
	MaxTick  time.Duration
}

// Overrun reports whether the work of any tick, sampling plus emission, exceeded
// period. Pacer time is not included: with Delay the real tick period is the
// work plus the delay, so callers wanting the full budget pass period minus the delay.
func (s Stats) Overrun(period time.Duration) bool {
	return s.MaxTick > period
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithPacer sets the inter-tick pacer. Default is NoPacing.
func WithPacer(p Pacer) Option {
	return func(s *Sampler) {
		s.pacer = p
	}
}

// WithTrigger sets the emission policy. Default is TriggerAuto.
func WithTrigger(t Trigger) Option {
	return func(s *Sampler) {
		s.trigger = t
	}
}

// WithClock replaces time.Now for budget measurement.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		s.now = now
	}
}

// Sampler runs acquisition ticks over a Buffer and emits completed partitions.
//
// A Sampler is a single cooperative thread of control: Tick, Dump and Run must
// not be called concurrently. Emission for a partition completes inside the tick
// that filled it, so the partition being emitted is never the one being written.
type Sampler struct {
	buf     *Buffer
	src     Source
	emitter *Emitter
	pacer   Pacer
	trigger Trigger
	now     func() time.Time

	stats Stats
}

// NewSampler creates a Sampler that reads src into buf and writes frames to sink.
func NewSampler(buf *Buffer, src Source, sink io.Writer, opts ...Option) *Sampler {
	s := &Sampler{
		buf:     buf,
		src:     src,
		emitter: NewEmitter(sink),
		pacer:   NoPacing,
		trigger: TriggerAuto,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Buffer returns the buffer the Sampler writes into.
func (s *Sampler) Buffer() *Buffer {
	return s.buf
}

// Trigger returns the emission policy.
func (s *Sampler) Trigger() Trigger {
	return s.trigger
}

// Tick performs one acquisition step: read every channel at the cursor, advance
// the cursor, emit the completed partition on a boundary, wrap, then pace.
func (s *Sampler) Tick() {
	start := s.now()

	for ch := range s.buf.geo.Channels {
		s.buf.put(ch, s.src.Read(ch))
	}

	if offset, ok := s.buf.step(); ok && s.trigger == TriggerAuto {
		s.emit(offset)
	}
	s.buf.wrap()

	s.stats.Ticks++
	s.stats.LastTick = s.now().Sub(start)
	if s.stats.LastTick > s.stats.MaxTick {
		s.stats.MaxTick = s.stats.LastTick
	}

	s.pacer.Wait()
}

// Dump emits every partition of the buffer in ascending offset order, whatever
// the trigger policy. It must be called between ticks.
func (s *Sampler) Dump() {
	ps := s.buf.geo.PartitionSize()
	for offset := 0; offset < s.buf.geo.BufferSize; offset += ps {
		s.emit(offset)
	}
}

// Run ticks until ctx is done.
func (s *Sampler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			s.Tick()
		}
	}
}

// Stats returns a snapshot of the budget counters.
func (s *Sampler) Stats() Stats {
	st := s.stats
	st.Frames = s.emitter.Frames()
	st.ShortWrites = s.emitter.ShortWrites()
	return st
}

func (s *Sampler) emit(offset int) {
	start := s.now()
	s.emitter.Emit(s.buf, offset)
	s.stats.Emissions++
	s.stats.LastEmit = s.now().Sub(start)
	if s.stats.LastEmit > s.stats.MaxEmit {
		s.stats.MaxEmit = s.stats.LastEmit
	}
}
