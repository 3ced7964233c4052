//go:build tinygo

package main

import (
	"machine"
	"time"

	"github.com/itohio/adcstream/pkg/acq"
)

const (
	// Acquisition geometry. The host config must use the same values:
	// 7 channels * 700 bytes = 4900 bytes of RAM for the buffers.
	NUM_CHANNELS   = 7
	BUFFER_SIZE    = 700 // Bytes per channel, two per sample
	NUM_PARTITIONS = 2
	TICK_INTERVAL  = 400 * time.Microsecond
	STARTUP_DELAY  = 5 * time.Second
	TRIGGER        = acq.TriggerAuto // acq.TriggerManual on boards without a fast enough link
	MANUAL_IDLE    = time.Millisecond

	// ADC configuration
	ADC_RESOLUTION = 10 // Bits reported on the wire (0-1023)

	// Serial configuration
	// One emission is 7 * (1 + 350) = 2457 bytes every 175 ticks (70 ms), ~35 kB/s.
	// A USB CDC link keeps up; a hardware UART needs at least 460800 baud.
	UART_BAUD_RATE = 115200

	PIN_LED = machine.LED
)

var adcPins = [NUM_CHANNELS]machine.Pin{
	machine.A0,
	machine.A1,
	machine.A2,
	machine.A3,
	machine.A4,
	machine.A5,
	machine.A6,
}
