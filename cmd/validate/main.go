// Command validate checks record bundles for integrity: the source record is
// strictly increasing and uniformly sampled, the derived record shares its
// time index, and every model contributed both an Ex and an Ey column.
//
// Usage:
//
//	go run ./cmd/validate [-s B] [-k E] [-tolerance 0.01] bundle...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/couchcryptid/geoderive/internal/adapter/store"
	"github.com/couchcryptid/geoderive/internal/domain"
)

// RecordReader reads records from a bundle.
type RecordReader interface {
	Read(ctx context.Context, source, key string) (*domain.Record, domain.Header, error)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, w io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	sourceKey := fs.String("s", "B", "source record key")
	key := fs.String("k", "E", "derived record key")
	tolerance := fs.Float64("tolerance", 0.01, "allowed relative deviation of sample spacing")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	st := store.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	failed := 0
	for _, bundle := range fs.Args() {
		problems := checkBundle(context.Background(), st, bundle, *sourceKey, *key, *tolerance)
		if len(problems) == 0 {
			fmt.Fprintf(w, "PASS %s\n", bundle)
			continue
		}
		failed++
		fmt.Fprintf(w, "FAIL %s\n", bundle)
		for _, p := range problems {
			fmt.Fprintf(w, "  - %s\n", p)
		}
	}
	fmt.Fprintf(w, "%d/%d bundles valid\n", fs.NArg()-failed, fs.NArg())
	if failed > 0 {
		return 1
	}
	return 0
}

// checkBundle returns a description of every problem found in the bundle.
func checkBundle(ctx context.Context, r RecordReader, bundle, sourceKey, key string, tolerance float64) []string {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	src, _, err := r.Read(ctx, bundle, sourceKey)
	if err != nil {
		add("source record: %v", err)
		return problems
	}
	if err := src.ValidateIndex(); err != nil {
		add("source index: %v", err)
	}
	if _, err := src.UniformInterval(tolerance); err != nil {
		add("source sampling: %v", err)
	}
	for _, c := range []string{domain.ColumnBx, domain.ColumnBy} {
		if _, ok := src.Column(c); !ok {
			add("source record has no %s column", c)
		}
	}

	derived, _, err := r.Read(ctx, bundle, key)
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		return problems
	case err != nil:
		add("derived record: %v", err)
		return problems
	}
	if !derived.AlignedWith(src) {
		add("derived index does not match source (%d vs %d samples)", derived.Len(), src.Len())
	}

	columns := derived.Columns()
	for _, c := range columns {
		if id, ok := strings.CutSuffix(c, "_Ex"); ok && !slices.Contains(columns, id+"_Ey") {
			add("model %s has Ex without Ey", id)
		}
		if id, ok := strings.CutSuffix(c, "_Ey"); ok && !slices.Contains(columns, id+"_Ex") {
			add("model %s has Ey without Ex", id)
		}
		if values, _ := derived.Column(c); allNaN(values) {
			add("column %s has no finite values", c)
		}
	}
	return problems
}

func allNaN(values []float64) bool {
	for _, v := range values {
		if !math.IsNaN(v) {
			return false
		}
	}
	return len(values) > 0
}
