package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// Evaluators dispatches models to their transfer-function implementation.
type Evaluators struct {
	Region  RegionEvaluator
	Spatial SpatialEvaluator
	// Catalog resolves spatial model identifiers to resource locators.
	Catalog SpatialIndex
}

// DeriveInput is the state a derivation starts from.
type DeriveInput struct {
	Source   *Record
	Existing *Record // nil when no derived record exists yet
	Replace  bool
	Models   []ModelRef

	// SamplingTolerance is the allowed relative deviation of each sample
	// spacing from the first one.
	SamplingTolerance float64
}

// Derive applies every model to the source record's horizontal field and
// merges the results into the derived record. Models are applied in sorted
// identifier order. The first evaluator failure aborts the derivation.
func Derive(ctx context.Context, in DeriveInput, ev Evaluators, logger *slog.Logger) (*Record, error) {
	if in.Source == nil {
		return nil, errors.New("derive: nil source record")
	}

	var out *Record
	switch {
	case in.Replace || in.Existing == nil:
		out = NewRecord(in.Source.index)
	case !in.Existing.AlignedWith(in.Source):
		return nil, fmt.Errorf("derive: %w", ErrIndexMismatch)
	default:
		out = in.Existing.Clone()
	}

	if len(in.Models) == 0 {
		return out, nil
	}

	bx, okX := in.Source.Column(ColumnBx)
	by, okY := in.Source.Column(ColumnBy)
	if !okX || !okY {
		return nil, fmt.Errorf("derive: %w", ErrMissingComponent)
	}

	interval, err := in.Source.UniformInterval(in.SamplingTolerance)
	if err != nil {
		return nil, fmt.Errorf("derive: %w", err)
	}

	models := slices.Clone(in.Models)
	SortModels(models)

	for _, m := range models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Info("applying transfer function", "model", m.ID, "kind", m.Kind.String())

		ex, ey, err := ev.apply(ctx, m, bx, by, interval)
		if err != nil {
			return nil, &EvaluatorError{Model: m.ID, Err: err}
		}
		if err := out.Set(m.ExColumn(), ex); err != nil {
			return nil, &EvaluatorError{Model: m.ID, Err: err}
		}
		if err := out.Set(m.EyColumn(), ey); err != nil {
			return nil, &EvaluatorError{Model: m.ID, Err: err}
		}
	}
	return out, nil
}

func (ev Evaluators) apply(ctx context.Context, m ModelRef, bx, by []float64, interval time.Duration) ([]float64, []float64, error) {
	switch m.Kind {
	case RegionModel:
		if ev.Region == nil {
			return nil, nil, errors.New("no region evaluator configured")
		}
		return ev.Region.ApplyRegion(ctx, bx, by, interval, m.ID)
	case SpatialModel:
		if ev.Spatial == nil {
			return nil, nil, errors.New("no spatial evaluator configured")
		}
		if ev.Catalog == nil {
			return nil, nil, errors.New("no spatial catalog loaded")
		}
		locator, ok := ev.Catalog.Locate(m.ID)
		if !ok {
			return nil, nil, errors.New("model not in spatial catalog")
		}
		return ev.Spatial.ApplySpatial(ctx, bx, by, interval, locator)
	default:
		return nil, nil, fmt.Errorf("unknown model kind %d", m.Kind)
	}
}
