// Command genmock writes synthetic record bundles for local runs and tests.
// Each bundle holds a "B" source record of superposed sinusoids with a few
// NaN gaps, stamped from a fixed base date so output is reproducible.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -bundles 3 -samples 1440 -interval 1m
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geoderive/internal/adapter/store"
	"github.com/couchcryptid/geoderive/internal/domain"
)

var baseDate = time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)

// mockStation is a real observatory location used for generated headers.
type mockStation struct {
	code     string
	lat, lon float64
}

var stations = []mockStation{
	{code: "FRD", lat: 38.205, lon: -77.373},
	{code: "BOU", lat: 40.137, lon: -105.237},
	{code: "TUC", lat: 32.174, lon: -110.734},
}

type options struct {
	out      string
	bundles  int
	samples  int
	interval time.Duration
	gaps     int
	seed     uint64
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("genmock", flag.ContinueOnError)
	var o options
	fs.StringVar(&o.out, "out", "", "directory to create bundles in")
	fs.IntVar(&o.bundles, "bundles", len(stations), "number of bundles")
	fs.IntVar(&o.samples, "samples", 1440, "samples per record")
	fs.DurationVar(&o.interval, "interval", time.Minute, "sampling interval")
	fs.IntVar(&o.gaps, "gaps", 2, "NaN samples per component")
	fs.Uint64Var(&o.seed, "seed", 1, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if o.out == "" || o.bundles < 1 || o.samples < 2 || o.interval <= 0 {
		fs.Usage()
		return fmt.Errorf("missing or invalid flags: -out, -bundles, -samples, -interval")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return generate(context.Background(), o, clockwork.NewFakeClockAt(baseDate), logger, os.Stdout)
}

// generate writes o.bundles bundles under o.out and lists them on w.
func generate(ctx context.Context, o options, clock clockwork.Clock, logger *slog.Logger, w io.Writer) error {
	st := store.New(logger)
	rng := rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15))

	for b := range o.bundles {
		station := stations[b%len(stations)]
		dir := filepath.Join(o.out, fmt.Sprintf("%s-%03d", station.code, b))

		rec := mockRecord(clock.Now(), o, rng)
		header := domain.Header{
			Station:           station.code,
			Source:            "genmock",
			GeodeticLatitude:  station.lat,
			GeodeticLongitude: station.lon,
		}
		if err := st.Write(ctx, dir, rec, "B", header); err != nil {
			return fmt.Errorf("write bundle %s: %w", dir, err)
		}
		fmt.Fprintln(w, dir)
	}
	return nil
}

func mockRecord(start time.Time, o options, rng *rand.Rand) *domain.Record {
	index := make([]time.Time, o.samples)
	bx := make([]float64, o.samples)
	by := make([]float64, o.samples)
	bz := make([]float64, o.samples)

	dt := o.interval.Seconds()
	periods := []float64{600, 3600, 4 * 3600}
	phase := rng.Float64() * 2 * math.Pi
	for i := range index {
		index[i] = start.Add(time.Duration(i) * o.interval)
		t := float64(i) * dt
		for k, p := range periods {
			amp := 50 / float64(k+1)
			bx[i] += amp * math.Sin(2*math.Pi*t/p+phase)
			by[i] += amp * math.Cos(2*math.Pi*t/p+phase)
		}
		bx[i] += 20000 + rng.NormFloat64()
		by[i] += -3000 + rng.NormFloat64()
		bz[i] = 45000 + rng.NormFloat64()
	}
	for range o.gaps {
		// Keep the first and last samples finite.
		bx[1+rng.IntN(o.samples-2)] = math.NaN()
		by[1+rng.IntN(o.samples-2)] = math.NaN()
	}

	rec := domain.NewRecord(index)
	_ = rec.Set(domain.ColumnBx, bx)
	_ = rec.Set(domain.ColumnBy, by)
	_ = rec.Set(domain.ColumnBz, bz)
	return rec
}
