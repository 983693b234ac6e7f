// Command iaga2rec imports IAGA-2002 magnetometer files into a record bundle.
//
// The files are read concurrently, joined in time order and written as the
// bundle's source record:
//
//	iaga2rec -o /data/bundles/frd-2024-05 [-k B] frd20240510dmin.min.gz frd20240511dmin.min.gz
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/geoderive/internal/adapter/iaga"
	"github.com/couchcryptid/geoderive/internal/adapter/store"
	"github.com/couchcryptid/geoderive/internal/config"
	"github.com/couchcryptid/geoderive/internal/domain"
	"github.com/couchcryptid/geoderive/internal/observability"
)

func main() {
	os.Exit(run())
}

type options struct {
	bundle string
	key    string
	files  []string
}

func parseOptions(args []string) (options, error) {
	fs := flag.NewFlagSet("iaga2rec", flag.ContinueOnError)
	var o options
	fs.StringVar(&o.bundle, "o", "", "bundle directory to write")
	fs.StringVar(&o.key, "k", "B", "key of the imported record")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	o.files = fs.Args()
	switch {
	case o.bundle == "":
		return options{}, &domain.ConfigurationError{Field: "o", Reason: "is required"}
	case o.key == "":
		return options{}, &domain.ConfigurationError{Field: "k", Reason: "is required"}
	case len(o.files) == 0:
		return options{}, &domain.ConfigurationError{Field: "files", Reason: "at least one IAGA-2002 file is required"}
	}
	return o, nil
}

func run() int {
	o, err := parseOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	logger := observability.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec, header, err := readAll(ctx, o.files, cfg.Workers)
	if err != nil {
		logger.Error("import failed", "error", err)
		return 1
	}
	if err := store.New(logger).Write(ctx, o.bundle, rec, o.key, header); err != nil {
		logger.Error("write failed", "bundle", o.bundle, "error", err)
		return 1
	}
	logger.Info("imported", "bundle", o.bundle, "key", o.key, "station", header.Station,
		"files", len(o.files), "samples", rec.Len())
	return 0
}

// readAll parses the files with at most workers in flight and joins them.
// All files must come from the same station.
func readAll(ctx context.Context, files []string, workers int) (*domain.Record, domain.Header, error) {
	records := make([]*domain.Record, len(files))
	headers := make([]domain.Header, len(files))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, path := range files {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			rec, header, err := iaga.ReadFile(path)
			if err != nil {
				return err
			}
			records[i], headers[i] = rec, header
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.Header{}, err
	}

	header := headers[0]
	for i, h := range headers[1:] {
		if h.Station != header.Station {
			return nil, domain.Header{}, fmt.Errorf("%s: station %q differs from %q", files[i+1], h.Station, header.Station)
		}
	}

	rec, err := iaga.Concat(records)
	if err != nil {
		return nil, domain.Header{}, err
	}
	return rec, header, nil
}
