package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/HerbHall/streamwatch/internal/seed"
)

// runGenerate writes a synthetic dataset for the csv source.
func runGenerate(args []string, stdout io.Writer) error {
	def := seed.DefaultOptions()

	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stdout)
	out := fs.String("out", "./data/sensor_data.csv", "output CSV path")
	series := fs.Int("series", def.Series, "number of sensors")
	length := fs.Int("length", def.Length, "points per sensor")
	interval := fs.Duration("interval", def.Interval, "spacing between readings")
	ratio := fs.Float64("anomaly-ratio", def.AnomalyRatio, "fraction of rows with an injected anomaly")
	magnitude := fs.Float64("magnitude", def.Magnitude, "size of injected anomalies")
	seedVal := fs.Uint64("seed", 0, "random seed (0 picks one from the clock)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := def
	opts.Series = *series
	opts.Length = *length
	opts.Interval = *interval
	opts.AnomalyRatio = *ratio
	opts.Magnitude = *magnitude
	opts.Seed = *seedVal
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}

	ds, err := seed.Generate(opts)
	if err != nil {
		return err
	}
	if err := ds.WriteCSVFile(*out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d readings for %d sensors to %s (%d anomalies injected, seed %d)\n",
		opts.Series*opts.Length, opts.Series, *out, len(ds.Injected), opts.Seed)
	return nil
}
