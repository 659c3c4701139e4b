package seed

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/HerbHall/streamwatch/internal/source"
	"gonum.org/v1/gonum/stat"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestGenerate_Defaults(t *testing.T) {
	opts := DefaultOptions()
	opts.Start = start
	opts.Seed = 7

	ds, err := Generate(opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ds.Sensors) != 3 || ds.Sensors[2] != "sensor_3" {
		t.Errorf("Sensors = %v", ds.Sensors)
	}
	if len(ds.Timestamps) != 1440 {
		t.Errorf("len(Timestamps) = %d, want 1440", len(ds.Timestamps))
	}
	if got := ds.Timestamps[1].Sub(ds.Timestamps[0]); got != time.Minute {
		t.Errorf("interval = %v, want 1m", got)
	}
	if len(ds.Injected) != 28 {
		t.Errorf("injected %d anomalies, want 28", len(ds.Injected))
	}

	seen := map[int]bool{}
	for _, inj := range ds.Injected {
		if seen[inj.Index] {
			t.Errorf("row %d injected twice", inj.Index)
		}
		seen[inj.Index] = true
		if math.Abs(inj.Delta) != 30 {
			t.Errorf("delta = %v, want +/-30", inj.Delta)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	opts := Options{Series: 2, Length: 50, Start: start, AnomalyRatio: 0.1, Magnitude: 30, Seed: 42}
	a, err := Generate(opts)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Generate(opts)
	for s := range a.Values {
		for i := range a.Values[s] {
			if a.Values[s][i] != b.Values[s][i] {
				t.Fatalf("value [%d][%d] differs between runs with equal seeds", s, i)
			}
		}
	}
}

func TestGenerate_ShapeWithoutNoiseDominating(t *testing.T) {
	ds, err := Generate(Options{Series: 1, Length: 1000, Start: start, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	// 50 + trend(0..5) + 10*sin + N(0,1): everything stays well inside [30, 75].
	for i, v := range ds.Values[0] {
		if v < 30 || v > 75 {
			t.Fatalf("value[%d] = %v outside expected envelope", i, v)
		}
	}
}

func TestGenerate_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"no series", Options{Series: 0, Length: 10}},
		{"no length", Options{Series: 1, Length: 0}},
		{"ratio above one", Options{Series: 1, Length: 10, AnomalyRatio: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Generate(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWriteCSV_ReadableByCSVSource(t *testing.T) {
	ds, err := Generate(Options{Series: 3, Length: 20, Start: start, AnomalyRatio: 0.1, Magnitude: 30, Seed: 3})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := ds.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	src, err := source.NewCSVSource(&buf)
	if err != nil {
		t.Fatalf("NewCSVSource: %v", err)
	}
	want := ds.Readings()
	for i := 0; ; i++ {
		r, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			if i != len(want) {
				t.Fatalf("read %d readings, want %d", i, len(want))
			}
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if r.SensorID != want[i].SensorID || r.Value != want[i].Value || !r.Timestamp.Equal(want[i].Timestamp) {
			t.Fatalf("reading %d = %+v, want %+v", i, r, want[i])
		}
	}
}

func TestWriteCSVFile(t *testing.T) {
	ds, _ := Generate(Options{Series: 1, Length: 5, Start: start})
	if err := ds.WriteCSVFile(filepath.Join(t.TempDir(), "out.csv")); err != nil {
		t.Fatalf("WriteCSVFile: %v", err)
	}
	if err := ds.WriteCSVFile(filepath.Join(t.TempDir(), "missing", "out.csv")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestGenerate_NoiseIsStandardNormal(t *testing.T) {
	const length = 2000
	ds, err := Generate(Options{Series: 2, Length: length, Start: start, Seed: 9})
	if err != nil {
		t.Fatal(err)
	}

	span := float64(length - 1)
	var resid []float64
	for _, vals := range ds.Values {
		for i, v := range vals {
			frac := float64(i) / span
			resid = append(resid, v-(50+5*frac+10*math.Sin(20*math.Pi*frac)))
		}
	}

	mean, std := stat.MeanStdDev(resid, nil)
	if math.Abs(mean) > 0.1 {
		t.Errorf("noise mean = %.3f, want about 0", mean)
	}
	if std < 0.9 || std > 1.1 {
		t.Errorf("noise std = %.3f, want about 1", std)
	}
}

func TestPCGSource_Reseed(t *testing.T) {
	src := pcgSource{rand.NewPCG(0, 0)}
	src.Seed(5)
	a := src.Uint64()
	src.Seed(5)
	if b := src.Uint64(); a != b {
		t.Errorf("Uint64 after reseed = %d, want %d", b, a)
	}
}
