package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/streamwatch/pkg/analytics"
)

var timeLayouts = []string{
	analytics.TimeLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// CSVSource reads a wide table: the first column is the timestamp, every
// other column is one sensor named by its header. Each row becomes one
// reading per sensor, emitted in column order.
type CSVSource struct {
	r       *csv.Reader
	closer  io.Closer
	sensors []string

	row     []string
	rowNum  int
	rowTime time.Time
	col     int // next sensor column to emit, 1-based into row
}

// OpenCSV opens the file at path. Close releases it.
func OpenCSV(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	s, err := NewCSVSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewCSVSource reads the header from r and prepares the stream.
func NewCSVSource(r io.Reader) (*CSVSource, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv source: empty input")
		}
		return nil, fmt.Errorf("csv source: read header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("csv source: header has %d column(s), want timestamp plus at least one sensor", len(header))
	}

	sensors := make([]string, len(header)-1)
	for i, h := range header[1:] {
		sensors[i] = strings.TrimSpace(h)
	}
	return &CSVSource{r: cr, sensors: sensors, rowNum: 1}, nil
}

// Sensors returns the sensor ids from the header, in column order.
func (s *CSVSource) Sensors() []string {
	out := make([]string, len(s.sensors))
	copy(out, s.sensors)
	return out
}

// Next implements Source.
func (s *CSVSource) Next(ctx context.Context) (analytics.Reading, error) {
	if err := ctx.Err(); err != nil {
		return analytics.Reading{}, err
	}

	for s.row == nil || s.col > len(s.sensors) {
		if err := s.advance(); err != nil {
			return analytics.Reading{}, err
		}
	}

	sensor := s.sensors[s.col-1]
	var cell string
	if s.col < len(s.row) {
		cell = strings.TrimSpace(s.row[s.col])
	}
	s.col++

	reading := analytics.Reading{Timestamp: s.rowTime, SensorID: sensor}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return reading, fmt.Errorf("%w: row %d sensor %q value %q", analytics.ErrMalformedReading, s.rowNum, sensor, cell)
	}
	reading.Value = v
	return reading, nil
}

// advance loads the next row. A row with a bad timestamp is reported once
// and skipped.
func (s *CSVSource) advance() error {
	row, err := s.r.Read()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			s.rowNum++
			s.row = nil
			return fmt.Errorf("%w: row %d: %v", analytics.ErrMalformedReading, s.rowNum, err)
		}
		return err
	}
	s.rowNum++

	ts, err := parseTime(strings.TrimSpace(row[0]))
	if err != nil {
		s.row = nil
		return fmt.Errorf("%w: row %d: %v", analytics.ErrMalformedReading, s.rowNum, err)
	}
	s.row = row
	s.rowTime = ts
	s.col = 1
	return nil
}

// Close releases the underlying file, if any.
func (s *CSVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func parseTime(v string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}
