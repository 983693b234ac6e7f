package emtf

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/geoderive/internal/cache"
	"github.com/couchcryptid/geoderive/internal/transfer"
)

// DefaultTensorCacheSize bounds the number of parsed tensors kept in memory.
const DefaultTensorCacheSize = 64

// Evaluator applies EMTF XML impedance tensors to magnetic field series.
type Evaluator struct {
	tensors *cache.LRU[string, *transfer.Tabulated]
	logger  *slog.Logger
}

// NewEvaluator creates an Evaluator caching up to cacheSize parsed tensors.
func NewEvaluator(cacheSize int, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		tensors: cache.NewLRU[string, *transfer.Tabulated](cacheSize),
		logger:  logger,
	}
}

// ApplySpatial applies the tensor stored at locator, an EMTF XML path.
func (e *Evaluator) ApplySpatial(ctx context.Context, bx, by []float64, interval time.Duration, locator string) ([]float64, []float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	tensor, err := e.tensor(locator)
	if err != nil {
		return nil, nil, err
	}

	nyquist := 0.5 / interval.Seconds()
	if minPeriod, _ := tensor.Band(); 1/nyquist < minPeriod {
		e.logger.Debug("transfer function does not cover the shortest sampled periods",
			"locator", locator,
			"min_period_s", minPeriod,
			"nyquist_period_s", 1/nyquist,
		)
	}
	return transfer.Apply(bx, by, interval, tensor)
}

func (e *Evaluator) tensor(path string) (*transfer.Tabulated, error) {
	if t, ok := e.tensors.Get(path); ok {
		return t, nil
	}
	tf, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := tf.Tensor()
	if err != nil {
		return nil, err
	}
	e.tensors.Put(path, t)
	return t, nil
}
