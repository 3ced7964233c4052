package acq

import "time"

// Pacer enforces the inter-tick interval. Wait is called once at the end of every tick.
type Pacer interface {
	Wait()
}

type noPacing struct{}

func (noPacing) Wait() {}

// NoPacing returns immediately. Used by tests and by manual triggering.
var NoPacing Pacer = noPacing{}

// Delay sleeps a fixed duration after each tick regardless of how long the tick took.
// Emission cost is not compensated.
type Delay time.Duration

// Wait sleeps for d.
func (d Delay) Wait() {
	time.Sleep(time.Duration(d))
}

// Ticker paces ticks to a wall-clock period. A tick that overruns the period
// consumes the pending tick and the next Wait returns at once.
type Ticker struct {
	t *time.Ticker
}

// NewTicker creates a Ticker with the given period.
func NewTicker(period time.Duration) *Ticker {
	return &Ticker{t: time.NewTicker(period)}
}

// Wait blocks until the next period boundary.
func (t *Ticker) Wait() {
	<-t.t.C
}

// Stop releases the underlying timer.
func (t *Ticker) Stop() {
	t.t.Stop()
}
