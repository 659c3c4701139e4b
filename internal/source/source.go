// Package source provides the reading streams consumed by the controller.
package source

import (
	"context"
	"io"

	"github.com/HerbHall/streamwatch/pkg/analytics"
)

// Source yields readings in arrival order. Next returns io.EOF when the
// stream is exhausted. An error wrapping analytics.ErrMalformedReading
// affects only that reading; the caller may keep calling Next.
type Source interface {
	Next(ctx context.Context) (analytics.Reading, error)
}

// SliceSource replays a fixed list of readings.
type SliceSource struct {
	readings []analytics.Reading
	pos      int
}

// NewSliceSource creates a source over readings. The slice is not copied.
func NewSliceSource(readings []analytics.Reading) *SliceSource {
	return &SliceSource{readings: readings}
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (analytics.Reading, error) {
	if err := ctx.Err(); err != nil {
		return analytics.Reading{}, err
	}
	if s.pos >= len(s.readings) {
		return analytics.Reading{}, io.EOF
	}
	r := s.readings[s.pos]
	s.pos++
	return r, nil
}
