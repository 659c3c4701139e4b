// Package seed generates synthetic multivariate sensor data for demos and
// soak tests: linear trend plus seasonality plus Gaussian noise, with
// spikes and drops injected at random points.
package seed

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/HerbHall/streamwatch/pkg/analytics"
	"gonum.org/v1/gonum/stat/distuv"
)

const seedMix = 0x9e3779b97f4a7c15

// pcgSource lets gonum distributions draw from the generator's PCG.
type pcgSource struct{ *rand.PCG }

func (s pcgSource) Seed(seed uint64) { s.PCG.Seed(seed, seed^seedMix) }

// Options controls the generated series.
type Options struct {
	Series       int           // Number of sensors, named sensor_1..sensor_N
	Length       int           // Points per sensor
	Interval     time.Duration // Spacing between timestamps
	Start        time.Time     // First timestamp; zero means now
	AnomalyRatio float64       // Fraction of rows that receive one injected anomaly
	Magnitude    float64       // Size of each spike or drop
	Seed         uint64        // RNG seed; equal seeds give equal data
}

// DefaultOptions returns 3 sensors of 1440 one-minute points with 2% of
// rows carrying a +/-30 anomaly.
func DefaultOptions() Options {
	return Options{
		Series:       3,
		Length:       1440,
		Interval:     time.Minute,
		AnomalyRatio: 0.02,
		Magnitude:    30,
	}
}

// Injection records one anomaly placed in the data.
type Injection struct {
	Index  int
	Sensor string
	Delta  float64
}

// Dataset is a wide table: Values[s][i] is sensor s at Timestamps[i].
type Dataset struct {
	Timestamps []time.Time
	Sensors    []string
	Values     [][]float64
	Injected   []Injection
}

// Generate builds a dataset from opts.
func Generate(opts Options) (*Dataset, error) {
	if opts.Series < 1 || opts.Length < 1 {
		return nil, fmt.Errorf("series and length must be positive, got %d and %d", opts.Series, opts.Length)
	}
	if opts.AnomalyRatio < 0 || opts.AnomalyRatio > 1 {
		return nil, fmt.Errorf("anomaly ratio must be in [0, 1], got %v", opts.AnomalyRatio)
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now().UTC().Truncate(time.Second)
	}

	pcg := rand.NewPCG(opts.Seed, opts.Seed^seedMix)
	rng := rand.New(pcg) //nolint:gosec // G404: synthetic data
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: pcgSource{pcg}}

	ds := &Dataset{
		Timestamps: make([]time.Time, opts.Length),
		Sensors:    make([]string, opts.Series),
		Values:     make([][]float64, opts.Series),
	}
	for i := range ds.Timestamps {
		ds.Timestamps[i] = opts.Start.Add(time.Duration(i) * opts.Interval)
	}

	// trend: 0 -> 5 across the series; seasonality: 10 full sine cycles.
	span := float64(max(opts.Length-1, 1))
	for s := range ds.Values {
		ds.Sensors[s] = fmt.Sprintf("sensor_%d", s+1)
		vals := make([]float64, opts.Length)
		for i := range vals {
			frac := float64(i) / span
			trend := 5 * frac
			seasonality := 10 * math.Sin(20*math.Pi*frac)
			vals[i] = 50 + trend + seasonality + noise.Rand()
		}
		ds.Values[s] = vals
	}

	n := int(float64(opts.Length) * opts.AnomalyRatio)
	for _, idx := range rng.Perm(opts.Length)[:n] {
		s := rng.IntN(opts.Series)
		delta := opts.Magnitude
		if rng.IntN(2) == 0 {
			delta = -delta
		}
		ds.Values[s][idx] += delta
		ds.Injected = append(ds.Injected, Injection{Index: idx, Sensor: ds.Sensors[s], Delta: delta})
	}

	return ds, nil
}

// Readings flattens the table row by row, sensors in column order.
func (ds *Dataset) Readings() []analytics.Reading {
	out := make([]analytics.Reading, 0, len(ds.Timestamps)*len(ds.Sensors))
	for i, ts := range ds.Timestamps {
		for s, id := range ds.Sensors {
			out = append(out, analytics.Reading{Timestamp: ts, SensorID: id, Value: ds.Values[s][i]})
		}
	}
	return out
}

// WriteCSV writes the wide table with an unnamed timestamp column.
func (ds *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{""}, ds.Sensors...)); err != nil {
		return err
	}
	row := make([]string, len(ds.Sensors)+1)
	for i, ts := range ds.Timestamps {
		row[0] = ts.Format(analytics.TimeLayout)
		for s := range ds.Sensors {
			row[s+1] = strconv.FormatFloat(ds.Values[s][i], 'f', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the dataset to path, replacing any existing file.
// Missing parent directories are created.
func (ds *Dataset) WriteCSVFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create directory for %q: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if err := ds.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("write %q: %w", path, err)
	}
	return f.Close()
}
