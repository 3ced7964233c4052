package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/itohio/adcstream/pkg/config"
	"github.com/itohio/adcstream/pkg/device"
	"github.com/itohio/adcstream/pkg/record"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	var (
		portFlag    = flag.String("p", "", "Serial port override (e.g., /dev/ttyACM0 or COM3)")
		configFlag  = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag    = flag.Bool("mock", false, "Use mocked device instead of serial port")
		listFlag    = flag.Bool("list", false, "List serial ports and exit")
		dumpFlag    = flag.Bool("dump", false, "Request a dump of the whole device buffer after connecting")
		ticksFlag   = flag.Int("ticks", 0, "Number of single ticks to request after connecting (manual trigger)")
		framesFlag  = flag.Int("frames", 0, "Stop after this many frames (0 = run until interrupted)")
		outFlag     = flag.String("out", "", "CSV output file override")
		averageFlag = flag.Int("average", -1, "Number of blocks to average per channel (0 = disabled, overrides config)")
		debugFlag   = flag.Bool("debug", false, "Development logging with per-block summaries")
	)
	flag.Parse()

	logger, err := newLogger(*debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *listFlag {
		ports, err := device.Ports()
		if err != nil {
			logger.Fatal("failed to list ports", zap.Error(err))
		}
		for _, p := range ports {
			fmt.Printf("%s\t%s\n", p.Name, p.Description)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err), zap.String("config", *configFlag))
	}

	// Command line overrides
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *outFlag != "" {
		cfg.Output.CSV = *outFlag
	}
	if *averageFlag >= 0 {
		cfg.Output.AverageBlocks = *averageFlag
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	// context handler for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var dev device.Device
	if *mockFlag {
		dev = device.NewMock(cfg, logger)
	} else {
		dev = device.New(cfg.Serial.Port, cfg.Serial.BaudRate, cfg.Geometry(), device.DefaultBufferSize, logger)
	}

	if err := execute(ctx, dev, cfg, logger, options{
		dump:      *dumpFlag,
		ticks:     *ticksFlag,
		maxFrames: *framesFlag,
	}); err != nil {
		logger.Error("acquisition failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// execute connects dev, streams until ctx is done or the frame limit is reached,
// and tears everything down in order.
func execute(ctx context.Context, dev device.Device, cfg *config.Config, logger *zap.Logger, opts options) (err error) {
	var rec *record.Recorder
	if cfg.Output.CSV != "" {
		f, ferr := os.Create(cfg.Output.CSV)
		if ferr != nil {
			return fmt.Errorf("failed to create output file: %w", ferr)
		}
		defer func() {
			err = multierr.Append(err, f.Close())
		}()
		rec = record.NewRecorder(f)
		defer func() {
			err = multierr.Append(err, rec.Flush())
		}()
	}

	if err := dev.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	err = run(ctx, dev, cfg, logger, rec, opts)
	return multierr.Append(err, dev.Close())
}
