package device

import "github.com/itohio/adcstream/pkg/frame"

// Device defines the interface for acquisition devices (real or mocked).
type Device interface {
	Connect() error
	Close() error
	Frames() <-chan frame.Frame
	RequestDump() error
	RequestTick() error
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
