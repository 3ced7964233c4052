package record

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/itohio/adcstream/pkg/sample"
)

var header = []string{"timestamp_us", "channel", "seq", "index", "raw", "volts"}

// Recorder writes converted blocks as CSV, one row per sample.
type Recorder struct {
	w       *csv.Writer
	started bool
	row     []string
}

// NewRecorder creates a Recorder writing to w. The header is written with the first block.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{
		w:   csv.NewWriter(w),
		row: make([]string, len(header)),
	}
}

// Write appends all samples of b. Sample timestamps are estimated from the
// block's receive time and sample period.
func (r *Recorder) Write(b sample.Block) error {
	if !r.started {
		if err := r.w.Write(header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		r.started = true
	}

	r.row[1] = strconv.Itoa(b.Channel)
	r.row[2] = strconv.FormatUint(b.Seq, 10)
	for i, raw := range b.Raw {
		r.row[0] = strconv.FormatInt(b.SampleTime(i).UnixMicro(), 10)
		r.row[3] = strconv.Itoa(i)
		r.row[4] = strconv.FormatUint(uint64(raw), 10)
		r.row[5] = strconv.FormatFloat(float64(b.Volts[i]), 'f', 4, 32)
		if err := r.w.Write(r.row); err != nil {
			return fmt.Errorf("failed to write channel %d block %d: %w", b.Channel, b.Seq, err)
		}
	}
	return nil
}

// Flush writes any buffered rows to the underlying writer.
func (r *Recorder) Flush() error {
	r.w.Flush()
	return r.w.Error()
}
