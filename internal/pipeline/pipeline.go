package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/geoderive/internal/domain"
	"github.com/couchcryptid/geoderive/internal/observability"
)

// ErrBatchFailed means at least one bundle of a batch failed.
var ErrBatchFailed = errors.New("batch had failures")

// RecordStore reads and writes records inside a bundle.
type RecordStore interface {
	Read(ctx context.Context, source, key string) (*domain.Record, domain.Header, error)
	Write(ctx context.Context, source string, rec *domain.Record, key string, header domain.Header) error
}

// Selector picks the models to apply to a station.
type Selector interface {
	Select(ctx context.Context, header domain.Header, req domain.SelectRequest) (domain.Selection, error)
}

// Notifier announces persisted derived records.
type Notifier interface {
	Notify(ctx context.Context, event domain.DerivedEvent) error
}

// Options controls one derivation per bundle.
type Options struct {
	SourceKey         string
	Key               string
	Replace           bool
	Select            domain.SelectRequest
	SamplingTolerance float64
}

// Pipeline reads a bundle's source record, selects and applies models, and
// writes the derived record back.
type Pipeline struct {
	store      RecordStore
	selector   Selector
	evaluators domain.Evaluators
	notifier   Notifier
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock
	runID      string

	ready     atomic.Bool
	total     atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for timestamps and durations.
func WithClock(c clockwork.Clock) Option { return func(p *Pipeline) { p.clock = c } }

// WithRunID sets the run identifier attached to logs and events.
func WithRunID(id string) Option { return func(p *Pipeline) { p.runID = id } }

// New creates a Pipeline. notifier may be nil. The evaluators' Catalog is
// replaced per bundle with the catalog loaded during selection.
func New(store RecordStore, selector Selector, ev domain.Evaluators, notifier Notifier, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		selector:   selector,
		evaluators: ev,
		notifier:   notifier,
		logger:     logger,
		metrics:    metrics,
		clock:      clockwork.NewRealClock(),
		runID:      uuid.NewString(),
	}
	for _, o := range opts {
		o(p)
	}
	p.logger = p.logger.With("run_id", p.runID)
	return p
}

// RunID returns the run identifier.
func (p *Pipeline) RunID() string { return p.runID }

// CheckReadiness returns nil once at least one bundle has been derived.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not derived any records yet")
	}
	return nil
}

// Progress reports the state of the current batch.
func (p *Pipeline) Progress() domain.BatchProgress {
	return domain.BatchProgress{
		RunID:     p.runID,
		Total:     int(p.total.Load()),
		Completed: int(p.completed.Load()),
		Failed:    int(p.failed.Load()),
	}
}

// Run processes every bundle with at most workers in flight. A failing bundle
// is logged and counted and does not stop the others; ErrBatchFailed is
// returned when any bundle failed.
func (p *Pipeline) Run(ctx context.Context, sources []string, opts Options, workers int) error {
	if workers < 1 {
		workers = 1
	}
	p.total.Store(int64(len(sources)))
	p.completed.Store(0)
	p.failed.Store(0)

	p.logger.Info("batch started", "bundles", len(sources), "workers", workers)
	p.metrics.BatchRunning.Set(1)
	defer p.metrics.BatchRunning.Set(0)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, source := range sources {
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			if _, err := p.Process(gCtx, source, opts); err != nil {
				p.failed.Add(1)
				p.logger.Error("bundle failed", "source", source, "error", err)
			}
			p.completed.Add(1)
			// Error isolation: a failed bundle never cancels the others.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	progress := p.Progress()
	p.logger.Info("batch finished", "bundles", progress.Total, "failed", progress.Failed)
	if progress.Failed > 0 {
		return fmt.Errorf("%d of %d bundles: %w", progress.Failed, progress.Total, ErrBatchFailed)
	}
	return nil
}

// Process derives the record for one bundle and persists it. Nothing is
// written when any step before the write fails.
func (p *Pipeline) Process(ctx context.Context, source string, opts Options) (domain.DerivedEvent, error) {
	start := p.clock.Now()
	logger := p.logger.With("source", source)

	src, header, err := p.store.Read(ctx, source, opts.SourceKey)
	if err != nil {
		return domain.DerivedEvent{}, p.fail("read", fmt.Errorf("read source record: %w", err))
	}

	var existing *domain.Record
	if !opts.Replace {
		existing, _, err = p.store.Read(ctx, source, opts.Key)
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			logger.Info("creating new derived record", "key", opts.Key)
			existing = nil
		case err != nil:
			return domain.DerivedEvent{}, p.fail("read", fmt.Errorf("read derived record: %w", err))
		}
	}

	selection, err := p.selector.Select(ctx, header, opts.Select)
	if err != nil {
		return domain.DerivedEvent{}, p.fail("select", fmt.Errorf("select models: %w", err))
	}
	if len(selection.Models) == 0 {
		logger.Warn("no models selected")
	}

	ev := p.evaluators
	ev.Catalog = selection.Catalog
	out, err := domain.Derive(ctx, domain.DeriveInput{
		Source:            src,
		Existing:          existing,
		Replace:           opts.Replace,
		Models:            selection.Models,
		SamplingTolerance: opts.SamplingTolerance,
	}, ev, logger)
	if err != nil {
		return domain.DerivedEvent{}, p.fail("derive", err)
	}

	if err := p.store.Write(ctx, source, out, opts.Key, header); err != nil {
		return domain.DerivedEvent{}, p.fail("write", fmt.Errorf("write derived record: %w", err))
	}

	for _, m := range selection.Models {
		p.metrics.ModelsApplied.WithLabelValues(m.Kind.String()).Inc()
	}
	p.metrics.BundlesProcessed.Inc()
	p.metrics.RecordSamples.Observe(float64(out.Len()))
	p.metrics.DerivationDuration.Observe(p.clock.Since(start).Seconds())
	p.ready.Store(true)

	event := domain.DerivedEvent{
		RunID:     p.runID,
		Source:    source,
		Key:       opts.Key,
		Station:   header.Station,
		Models:    selection.IDs(),
		Samples:   out.Len(),
		Replaced:  opts.Replace,
		DerivedAt: p.clock.Now().UTC(),
	}
	logger.Info("derived record written", "key", opts.Key, "models", event.Models, "samples", event.Samples)
	p.notify(ctx, logger, event)
	return event, nil
}

// notify publishes the event. A failure is logged and never undoes the write.
func (p *Pipeline) notify(ctx context.Context, logger *slog.Logger, event domain.DerivedEvent) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, event); err != nil {
		p.metrics.NotificationErrors.Inc()
		logger.Warn("derived event notification failed", "error", err)
		return
	}
	p.metrics.NotificationsPublished.Inc()
}

func (p *Pipeline) fail(stage string, err error) error {
	p.metrics.BundleFailures.WithLabelValues(stage).Inc()
	return err
}
