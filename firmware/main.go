//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"

	"github.com/itohio/adcstream/pkg/acq"
)

var (
	adcs [NUM_CHANNELS]machine.ADC
	uart = machine.Serial
)

func main() {
	PIN_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	// Configure ADC pins
	machine.InitADC()
	for i, pin := range adcPins {
		pin.Configure(machine.PinConfig{Mode: machine.PinInput})
		adcs[i] = machine.ADC{Pin: pin}
		adcs[i].Configure(machine.ADCConfig{Resolution: ADC_RESOLUTION})
	}

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	buf, err := acq.NewBuffer(acq.Geometry{
		Channels:   NUM_CHANNELS,
		BufferSize: BUFFER_SIZE,
		Partitions: NUM_PARTITIONS,
	})
	if err != nil {
		// Geometry constants are wrong; blink forever rather than stream garbage.
		for {
			PIN_LED.Set(!PIN_LED.Get())
			time.Sleep(100 * time.Millisecond)
		}
	}

	sampler := acq.NewSampler(buf, acq.SourceFunc(readChannel), uart,
		acq.WithPacer(acq.Delay(TICK_INTERVAL)),
		acq.WithTrigger(TRIGGER),
	)

	// Give the host time to open the port before the first frame
	time.Sleep(STARTUP_DELAY)
	PIN_LED.High()

	for {
		processSerial(sampler)

		if TRIGGER == acq.TriggerAuto {
			sampler.Tick()
			// Delay adds to the work, so the period is work + TICK_INTERVAL.
			// LED off once a tick's work alone exceeded the delay, i.e. the
			// sample period more than doubled.
			if sampler.Stats().Overrun(TICK_INTERVAL) {
				PIN_LED.Low()
			}
		} else {
			time.Sleep(MANUAL_IDLE)
		}
	}
}

// readChannel returns the ADC reading of channel ch scaled down to ADC_RESOLUTION bits.
// machine.ADC.Get always reports a left-aligned 16-bit value.
func readChannel(ch int) uint16 {
	return adcs[ch].Get() >> (16 - ADC_RESOLUTION)
}

// processSerial applies pending command bytes between ticks.
func processSerial(sampler *acq.Sampler) {
	for uart.Buffered() > 0 {
		cmd, err := uart.ReadByte()
		if err != nil {
			break
		}
		sampler.Handle(cmd)
	}
}
