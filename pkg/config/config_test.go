package config

import (
	"os"
	"testing"
	"time"

	"github.com/itohio/adcstream/pkg/acq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()

	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	_, err = tmpfile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	return tmpfile.Name()
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 7, cfg.Acquisition.Channels)
	assert.Equal(t, 700, cfg.Acquisition.BufferSize)
	assert.Equal(t, 2, cfg.Acquisition.Partitions)
	assert.Equal(t, 400*time.Microsecond, cfg.Acquisition.TickInterval)
	assert.Equal(t, "auto", cfg.Acquisition.Trigger)
	assert.Equal(t, float32(3.3), cfg.ADC.VRef)
	assert.Equal(t, 10, cfg.ADC.Resolution)
	assert.Equal(t, acq.DefaultGeometry, cfg.Geometry())
	assert.Equal(t, acq.TriggerAuto, cfg.Trigger())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	name := writeTemp(t, `
serial:
  port: "/dev/ttyUSB1"
  baud_rate: 460800

acquisition:
  channels: 4
  buffer_size: 400
  partitions: 4
  tick_interval: 250us
  trigger: manual

adc:
  vref: 5.0
  resolution: 12

mock:
  frequency: 50
  amplitude: 0.2

output:
  csv: "samples.csv"
  average_blocks: 3
`)

	cfg, err := Load(name)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 460800, cfg.Serial.BaudRate)
	assert.Equal(t, acq.Geometry{Channels: 4, BufferSize: 400, Partitions: 4}, cfg.Geometry())
	assert.Equal(t, 250*time.Microsecond, cfg.Acquisition.TickInterval)
	assert.Equal(t, acq.TriggerManual, cfg.Trigger())
	assert.Equal(t, float32(5.0), cfg.ADC.VRef)
	assert.Equal(t, 12, cfg.ADC.Resolution)
	assert.Equal(t, float32(50), cfg.Mock.Frequency)
	assert.Equal(t, float32(0.2), cfg.Mock.Amplitude)
	assert.Equal(t, "samples.csv", cfg.Output.CSV)
	assert.Equal(t, 3, cfg.Output.AverageBlocks)
}

func TestLoad_InvalidYAML(t *testing.T) {
	name := writeTemp(t, "invalid: yaml: content: [")

	cfg, err := Load(name)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	name := writeTemp(t, `
serial:
  port: "/dev/ttyACM1"
acquisition:
  channels: 3
`)

	cfg, err := Load(name)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyACM1", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 3, cfg.Acquisition.Channels)
	assert.Equal(t, 700, cfg.Acquisition.BufferSize)
	assert.Equal(t, 400*time.Microsecond, cfg.Acquisition.TickInterval)
}

func TestLoad_InvalidGeometry(t *testing.T) {
	name := writeTemp(t, `
acquisition:
  buffer_size: 10
  partitions: 2
`)

	cfg, err := Load(name)
	assert.ErrorIs(t, err, acq.ErrPartitionAlignment)
	assert.Nil(t, cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "default", mutate: func(c *Config) {}},
		{name: "manual trigger", mutate: func(c *Config) { c.Acquisition.Trigger = "manual" }},
		{name: "unknown trigger", mutate: func(c *Config) { c.Acquisition.Trigger = "sometimes" }, wantErr: true},
		{name: "odd buffer", mutate: func(c *Config) { c.Acquisition.BufferSize = 701 }, wantErr: true},
		{name: "odd partition", mutate: func(c *Config) { c.Acquisition.Partitions = 4 }, wantErr: true},
		{name: "too many channels", mutate: func(c *Config) { c.Acquisition.Channels = 256 }, wantErr: true},
		{name: "zero tick", mutate: func(c *Config) { c.Acquisition.TickInterval = 0 }, wantErr: true},
		{name: "resolution too high", mutate: func(c *Config) { c.ADC.Resolution = 17 }, wantErr: true},
		{name: "negative vref", mutate: func(c *Config) { c.ADC.VRef = -1 }, wantErr: true},
		{name: "negative averaging", mutate: func(c *Config) { c.Output.AverageBlocks = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Acquisition.TickInterval = time.Millisecond
	cfg.Acquisition.Trigger = "manual"

	name := writeTemp(t, "")

	err := cfg.Save(name)
	require.NoError(t, err)

	// Load it back and verify
	loaded, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, time.Millisecond, loaded.Acquisition.TickInterval)
	assert.Equal(t, acq.TriggerManual, loaded.Trigger())
	assert.Equal(t, cfg.Geometry(), loaded.Geometry())
}
