package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/itohio/adcstream/pkg/acq"
	"github.com/itohio/adcstream/pkg/frame"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// DefaultBaudRate matches the firmware UART configuration.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the frames channel buffer.
	DefaultBufferSize = 100
)

var (
	ErrConnected    = errors.New("already connected")
	ErrNotConnected = errors.New("not connected")
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial receives the frame stream from the MCU over a serial port.
type Serial struct {
	port     string
	baudRate int
	bufSize  int
	geo      acq.Geometry
	logger   *zap.Logger

	conn      serial.Port
	frames    chan frame.Frame
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
}

// New creates a Serial device. geo must match the firmware build.
func New(port string, baudRate int, geo acq.Geometry, bufSize int, logger *zap.Logger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		geo:      geo,
		logger:   logger.With(zap.String("port", port)),
		frames:   make(chan frame.Frame, bufSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Ports returns a list of available serial ports. USB ports carry their product
// name and VID:PID in the description.
func Ports() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		names, err := serial.GetPortsList()
		if err != nil {
			return nil, fmt.Errorf("failed to list serial ports: %w", err)
		}
		result := make([]Port, 0, len(names))
		for _, name := range names {
			result = append(result, Port{Name: name, Description: name})
		}
		return result, nil
	}

	result := make([]Port, 0, len(details))
	for _, d := range details {
		desc := d.Name
		if d.IsUSB {
			desc = fmt.Sprintf("%s (%s:%s)", d.Product, d.VID, d.PID)
		}
		result = append(result, Port{
			Name:        d.Name,
			Description: desc,
		})
	}
	return result, nil
}

// Connect opens the serial port and starts decoding frames.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrConnected
	}
	if err := d.geo.Validate(); err != nil {
		return fmt.Errorf("invalid geometry: %w", err)
	}

	mode := &serial.Mode{
		BaudRate: d.baudRate,
	}

	port, err := serial.Open(d.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		d.logger.Warn("failed to reset input buffer", zap.Error(err))
	}

	// A closed device gets a fresh context and frames channel.
	if d.ctx.Err() != nil {
		d.ctx, d.cancel = context.WithCancel(context.Background())
		d.frames = make(chan frame.Frame, d.bufSize)
	}

	d.conn = port
	d.connected = true
	d.done = make(chan struct{})

	go d.readFrames(d.ctx, port, d.frames, d.done)

	d.logger.Info("connected",
		zap.Int("baudRate", d.baudRate),
		zap.Int("channels", d.geo.Channels),
		zap.Int("partitionSize", d.geo.PartitionSize()),
	)

	return nil
}

// Close closes the port, waits for the reader to stop and closes the frames channel.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	var err error
	if d.conn != nil {
		err = multierr.Append(err, d.conn.Close())
		d.conn = nil
	}
	<-d.done

	d.connected = false
	close(d.frames)

	if err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", d.port, err)
	}
	return nil
}

// Frames returns the channel of decoded frames. A Connect after Close replaces it.
func (d *Serial) Frames() <-chan frame.Frame {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.frames
}

// RequestDump asks the firmware to emit its whole buffer.
func (d *Serial) RequestDump() error {
	return d.command(acq.CmdDump)
}

// RequestTick asks the firmware to take one sample on every channel.
func (d *Serial) RequestTick() error {
	return d.command(acq.CmdTick)
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

func (d *Serial) command(cmd byte) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return ErrNotConnected
	}

	if _, err := d.conn.Write([]byte{cmd}); err != nil {
		return fmt.Errorf("failed to send command %q: %w", cmd, err)
	}
	return nil
}

// readFrames decodes frames from the port until it is closed.
func (d *Serial) readFrames(ctx context.Context, port serial.Port, out chan<- frame.Frame, done chan<- struct{}) {
	defer close(done)

	decode(ctx, frame.NewDecoder(port, d.geo), out, d.logger)
}

// decode pumps frames from dec into out, resynchronising on tag errors and
// dropping frames when out is full.
func decode(ctx context.Context, dec *frame.Decoder, out chan<- frame.Frame, logger *zap.Logger) {
	var dropped uint64
	for {
		f, err := dec.Next()
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			var oos *frame.OutOfSyncError
			if !errors.As(err, &oos) {
				logger.Info("frame stream ended", zap.Error(err))
				return
			}

			logger.Warn("resyncing frame stream", zap.Error(err))
			if err := dec.Resync(); err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, frame.ErrNoSync) {
					continue
				}
				logger.Info("frame stream ended during resync", zap.Error(err))
				return
			}
			continue
		}

		select {
		case out <- f:
		case <-ctx.Done():
			return
		default:
			dropped++
			logger.Warn("frames channel full, dropping frame",
				zap.Int("channel", f.Channel),
				zap.Uint64("seq", f.Seq),
				zap.Uint64("dropped", dropped),
			)
		}
	}
}
