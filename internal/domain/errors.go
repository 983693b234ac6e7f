package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is returned by record stores when a key has no record.
	ErrRecordNotFound = errors.New("record not found")

	// ErrTooFewSamples means a sampling interval cannot be derived.
	ErrTooFewSamples = errors.New("record needs at least two samples")

	// ErrNonUniformSampling means a sample spacing deviates from the first interval.
	ErrNonUniformSampling = errors.New("record is not uniformly sampled")

	// ErrUnorderedIndex means the time index is not strictly increasing.
	ErrUnorderedIndex = errors.New("time index is not strictly increasing")

	// ErrIndexMismatch means an existing derived record is not aligned with its source.
	ErrIndexMismatch = errors.New("derived record index does not match source index")

	// ErrMissingComponent means the source record lacks Bx or By.
	ErrMissingComponent = errors.New("source record missing magnetic field component")

	// ErrLengthMismatch means a column does not match the record length.
	ErrLengthMismatch = errors.New("column length does not match index length")
)

// CatalogLoadError reports an unreadable or malformed spatial model catalog.
type CatalogLoadError struct {
	Path string
	Err  error
}

func (e *CatalogLoadError) Error() string {
	return fmt.Sprintf("load spatial catalog %s: %v", e.Path, e.Err)
}

func (e *CatalogLoadError) Unwrap() error { return e.Err }

// EvaluatorError reports a transfer function that failed for one model.
type EvaluatorError struct {
	Model string
	Err   error
}

func (e *EvaluatorError) Error() string {
	return fmt.Sprintf("evaluate model %s: %v", e.Model, e.Err)
}

func (e *EvaluatorError) Unwrap() error { return e.Err }

// ConfigurationError reports an option outside its allowed range.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
