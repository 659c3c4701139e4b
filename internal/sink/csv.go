package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/HerbHall/streamwatch/pkg/analytics"
)

var csvHeader = []string{"timestamp", "sensor", "actual", "predicted", "residual", "anomaly"}

// CSVRecorder writes decisions to a CSV log, flushing after each row so
// the file is readable while the stream runs.
type CSVRecorder struct {
	out io.WriteCloser
	w   *csv.Writer
}

// NewCSVRecorder creates the log at path. By default an existing file is
// truncated and the log starts header-only. With appendMode, rows follow
// the existing content and the header is written only into an empty file.
func NewCSVRecorder(path string, appendMode bool) (*CSVRecorder, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open decision log %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat decision log %q: %w", path, err)
	}

	r, err := newCSVRecorder(f, info.Size() == 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("write decision log header: %w", err)
	}
	return r, nil
}

func newCSVRecorder(out io.WriteCloser, header bool) (*CSVRecorder, error) {
	r := &CSVRecorder{out: out, w: csv.NewWriter(out)}
	if header {
		if err := r.write(csvHeader); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Record implements Recorder.
func (r *CSVRecorder) Record(_ context.Context, d analytics.Decision) error {
	anomaly := "0"
	if d.IsAnomaly {
		anomaly = "1"
	}
	return r.write([]string{
		d.Timestamp.Format(analytics.TimeLayout),
		d.SensorID,
		formatFloat(d.Actual),
		formatFloat(d.Predicted),
		formatFloat(d.Residual),
		anomaly,
	})
}

// Close flushes and closes the file.
func (r *CSVRecorder) Close() error {
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		r.out.Close()
		return err
	}
	return r.out.Close()
}

// write flushes one row. csv.Writer errors are sticky, so a failed row
// gets a fresh writer and the next row can still land. The failed row may
// be left partially written.
func (r *CSVRecorder) write(row []string) error {
	if err := r.w.Write(row); err != nil {
		r.w = csv.NewWriter(r.out)
		return err
	}
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		r.w = csv.NewWriter(r.out)
		return err
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
