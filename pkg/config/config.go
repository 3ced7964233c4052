package config

import (
	"fmt"
	"os"
	"time"

	"github.com/itohio/adcstream/pkg/acq"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	ADC         ADCConfig         `yaml:"adc"`
	Mock        MockConfig        `yaml:"mock"`
	Output      OutputConfig      `yaml:"output"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// AcquisitionConfig must match the constants the firmware was built with.
type AcquisitionConfig struct {
	Channels     int           `yaml:"channels"`
	BufferSize   int           `yaml:"buffer_size"`   // Bytes per channel
	Partitions   int           `yaml:"partitions"`    // Emission segments per buffer
	TickInterval time.Duration `yaml:"tick_interval"` // Time between samples of one channel
	Trigger      string        `yaml:"trigger"`       // "auto" or "manual"
}

// ADCConfig contains the converter parameters used to turn counts into volts.
type ADCConfig struct {
	VRef       float32 `yaml:"vref"`
	Resolution int     `yaml:"resolution"` // Bits
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	Frequency  float32 `yaml:"frequency"`   // Base signal frequency (Hz); channel i runs at (i+1) times this
	Amplitude  float32 `yaml:"amplitude"`   // Peak amplitude as a fraction of full scale
	Offset     float32 `yaml:"offset"`      // DC offset as a fraction of full scale
	NoiseLevel float32 `yaml:"noise_level"` // Noise as a fraction of full scale
}

// OutputConfig controls where converted samples are recorded.
type OutputConfig struct {
	CSV           string `yaml:"csv"`            // Empty disables recording
	AverageBlocks int    `yaml:"average_blocks"` // Running mean over N blocks per channel (0 = disabled)
}

// Default returns a default configuration matching the reference firmware.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		Acquisition: AcquisitionConfig{
			Channels:     acq.DefaultGeometry.Channels,
			BufferSize:   acq.DefaultGeometry.BufferSize,
			Partitions:   acq.DefaultGeometry.Partitions,
			TickInterval: 400 * time.Microsecond,
			Trigger:      acq.TriggerAuto.String(),
		},
		ADC: ADCConfig{
			VRef:       3.3,
			Resolution: 10,
		},
		Mock: MockConfig{
			Frequency:  5,
			Amplitude:  0.4,
			Offset:     0.5,
			NoiseLevel: 0.01,
		},
		Output: OutputConfig{
			CSV:           "",
			AverageBlocks: 0,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filename, err)
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Geometry returns the acquisition buffer shape.
func (c *Config) Geometry() acq.Geometry {
	return acq.Geometry{
		Channels:   c.Acquisition.Channels,
		BufferSize: c.Acquisition.BufferSize,
		Partitions: c.Acquisition.Partitions,
	}
}

// Trigger returns the configured emission policy.
func (c *Config) Trigger() acq.Trigger {
	if c.Acquisition.Trigger == acq.TriggerManual.String() {
		return acq.TriggerManual
	}
	return acq.TriggerAuto
}

// Validate checks the configuration without modifying it.
func (c *Config) Validate() error {
	if err := c.Geometry().Validate(); err != nil {
		return fmt.Errorf("acquisition: %w", err)
	}
	if c.Acquisition.TickInterval <= 0 {
		return fmt.Errorf("acquisition: tick_interval must be > 0, got %v", c.Acquisition.TickInterval)
	}
	switch c.Acquisition.Trigger {
	case acq.TriggerAuto.String(), acq.TriggerManual.String():
	default:
		return fmt.Errorf("acquisition: trigger must be %q or %q, got %q",
			acq.TriggerAuto, acq.TriggerManual, c.Acquisition.Trigger)
	}
	if c.ADC.Resolution < 1 || c.ADC.Resolution > 16 {
		return fmt.Errorf("adc: resolution must be in [1, 16] bits, got %d", c.ADC.Resolution)
	}
	if c.ADC.VRef <= 0 {
		return fmt.Errorf("adc: vref must be > 0, got %v", c.ADC.VRef)
	}
	if c.Output.AverageBlocks < 0 {
		return fmt.Errorf("output: average_blocks must be >= 0, got %d", c.Output.AverageBlocks)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Acquisition.Channels == 0 {
		c.Acquisition.Channels = def.Acquisition.Channels
	}
	if c.Acquisition.BufferSize == 0 {
		c.Acquisition.BufferSize = def.Acquisition.BufferSize
	}
	if c.Acquisition.Partitions == 0 {
		c.Acquisition.Partitions = def.Acquisition.Partitions
	}
	if c.Acquisition.TickInterval == 0 {
		c.Acquisition.TickInterval = def.Acquisition.TickInterval
	}
	if c.Acquisition.Trigger == "" {
		c.Acquisition.Trigger = def.Acquisition.Trigger
	}

	if c.ADC.VRef == 0 {
		c.ADC.VRef = def.ADC.VRef
	}
	if c.ADC.Resolution == 0 {
		c.ADC.Resolution = def.ADC.Resolution
	}

	if c.Mock.Frequency == 0 {
		c.Mock.Frequency = def.Mock.Frequency
	}
}
