// Command e2rec derives modeled geoelectric field records for a batch of
// record bundles.
//
// Usage:
//
//	e2rec [-s B] [-k E] [-r] [-1D] [-3D 150,/data/emtf] [-q 5] \
//	  [-i CP1,USArray.MTA20] [-e IP2] [-exclude-auto] bundle...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/geoderive/internal/adapter/emtf"
	httpadapter "github.com/couchcryptid/geoderive/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/geoderive/internal/adapter/kafka"
	"github.com/couchcryptid/geoderive/internal/adapter/region"
	"github.com/couchcryptid/geoderive/internal/adapter/store"
	"github.com/couchcryptid/geoderive/internal/config"
	"github.com/couchcryptid/geoderive/internal/domain"
	"github.com/couchcryptid/geoderive/internal/observability"
	"github.com/couchcryptid/geoderive/internal/pipeline"
	"github.com/couchcryptid/geoderive/internal/spatial"
)

func main() {
	os.Exit(run())
}

func parseRequest(args []string) (config.Request, error) {
	fs := flag.NewFlagSet("e2rec", flag.ContinueOnError)
	var (
		req              config.Request
		include, exclude string
		threeD           string
	)
	fs.StringVar(&req.SourceKey, "source-key", "B", "key of the source magnetic field record")
	fs.StringVar(&req.SourceKey, "s", "B", "shorthand for -source-key")
	fs.StringVar(&req.Key, "key", "E", "key of the derived record")
	fs.StringVar(&req.Key, "k", "E", "shorthand for -key")
	fs.BoolVar(&req.Replace, "replace", false, "replace the derived record instead of appending to it")
	fs.BoolVar(&req.Replace, "r", false, "shorthand for -replace")
	fs.StringVar(&include, "include", "", "comma-separated model identifiers to apply")
	fs.StringVar(&include, "i", "", "shorthand for -include")
	fs.StringVar(&exclude, "exclude", "", "comma-separated model identifiers to skip")
	fs.StringVar(&exclude, "e", "", "shorthand for -exclude")
	fs.BoolVar(&req.Want1D, "1D", false, "apply the 1-D model of the station's region")
	fs.StringVar(&threeD, "3D", "", `apply 3-D models within a distance: "distance_km,catalog_path"`)
	fs.IntVar(&req.MinQuality, "quality", 5, "minimum 3-D model quality rating (0-5)")
	fs.IntVar(&req.MinQuality, "q", 5, "shorthand for -quality")
	fs.BoolVar(&req.ExcludeAuto, "exclude-auto", false, "apply -exclude to automatically selected models too")

	if err := fs.Parse(args); err != nil {
		return config.Request{}, err
	}
	req.Bundles = fs.Args()
	req.Include = config.SplitList(include)
	req.Exclude = config.SplitList(exclude)
	if threeD != "" {
		td, err := config.ParseThreeD(threeD)
		if err != nil {
			return config.Request{}, err
		}
		req.ThreeD = td
	}
	if err := config.ValidateRequest(req); err != nil {
		return config.Request{}, err
	}
	return req, nil
}

// checkRequest rejects requests the configuration cannot serve.
func checkRequest(cfg *config.Config, req config.Request) error {
	if req.Want1D && !cfg.RegionModelsEnabled() {
		return &domain.ConfigurationError{Field: "1D", Reason: "requires REGION_CATALOG and REGION_MODELS"}
	}
	return nil
}

func run() int {
	req, err := parseRequest(os.Args[1:])
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
	if err := checkRequest(cfg, req); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger := observability.NewLogger(cfg)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	runID := uuid.NewString()

	// 1-D region models are feature-flagged via REGION_CATALOG / REGION_MODELS.
	var (
		regions    domain.RegionLookup
		regionEval domain.RegionEvaluator
	)
	if cfg.RegionModelsEnabled() {
		catalog, err := region.LoadCatalog(cfg.RegionCatalog, cfg.RegionProperty)
		if err != nil {
			logger.Error("failed to load region catalog", "error", err)
			return 1
		}
		models, err := region.LoadModels(cfg.RegionModels)
		if err != nil {
			logger.Error("failed to load region models", "error", err)
			return 1
		}
		regions = region.NewCachedLookup(catalog, cfg.RegionCacheSize, metrics)
		regionEval = models
		logger.Info("region models enabled", "regions", catalog.Len(), "cache_size", cfg.RegionCacheSize)
	} else {
		logger.Info("region models disabled")
	}

	catalogs := spatial.NewCachedLoader(emtf.NewRepository(logger))
	selector := domain.NewSelector(regions, catalogs, logger)
	evaluators := domain.Evaluators{
		Region:  regionEval,
		Spatial: emtf.NewEvaluator(emtf.DefaultTensorCacheSize, logger),
	}

	var notifier pipeline.Notifier
	var writer *kafkaadapter.Writer
	if cfg.NotificationsEnabled() {
		writer = kafkaadapter.NewWriter(cfg, logger)
		notifier = writer
		logger.Info("kafka notifications enabled", "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(store.New(logger), selector, evaluators, notifier, logger, metrics, pipeline.WithRunID(runID))

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, p, registry, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := pipeline.Options{
		SourceKey:         req.SourceKey,
		Key:               req.Key,
		Replace:           req.Replace,
		Select:            req.SelectRequest(),
		SamplingTolerance: cfg.SamplingTolerance,
	}
	runErr := p.Run(ctx, req.Bundles, opts, cfg.Workers)
	if runErr != nil {
		logger.Error("batch failed", "run_id", runID, "error", runErr)
	}

	shutdown(cfg, logger, registry, srv, writer)

	if runErr != nil {
		return 1
	}
	return 0
}

func shutdown(cfg *config.Config, logger *slog.Logger, gatherer prometheus.Gatherer, srv *httpadapter.Server, writer *kafkaadapter.Writer) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if cfg.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsTextfile, gatherer); err != nil {
			logger.Error("metrics textfile write error", "error", err)
		}
	}
	logger.Info("shutdown complete")
}
