package domain

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Source record component column names.
const (
	ColumnBx = "Bx"
	ColumnBy = "By"
	ColumnBz = "Bz"
)

// Header is the station metadata attached to a record.
type Header struct {
	Station           string            `json:"station,omitempty"`
	Source            string            `json:"source,omitempty"`
	GeodeticLatitude  float64           `json:"geodetic_latitude"`
	GeodeticLongitude float64           `json:"geodetic_longitude"`
	Elevation         float64           `json:"elevation,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// Record is a time-indexed table of float64 columns.
// Column names are unique and keep their insertion order.
type Record struct {
	index   []time.Time
	columns []string
	data    map[string][]float64
}

// NewRecord creates an empty record over the given time index.
// The index is copied.
func NewRecord(index []time.Time) *Record {
	return &Record{
		index: slices.Clone(index),
		data:  make(map[string][]float64),
	}
}

// Len returns the number of samples.
func (r *Record) Len() int { return len(r.index) }

// Index returns a copy of the time index.
func (r *Record) Index() []time.Time { return slices.Clone(r.index) }

// Columns returns the column names in insertion order.
func (r *Record) Columns() []string { return slices.Clone(r.columns) }

// Column returns a copy of the named column.
func (r *Record) Column(name string) ([]float64, bool) {
	v, ok := r.data[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

// Set stores values under name. An existing column keeps its position.
func (r *Record) Set(name string, values []float64) error {
	if len(values) != len(r.index) {
		return fmt.Errorf("set column %s: %w (%d != %d)", name, ErrLengthMismatch, len(values), len(r.index))
	}
	if _, ok := r.data[name]; !ok {
		r.columns = append(r.columns, name)
	}
	r.data[name] = slices.Clone(values)
	return nil
}

// Drop removes the named column if present.
func (r *Record) Drop(name string) {
	if _, ok := r.data[name]; !ok {
		return
	}
	delete(r.data, name)
	r.columns = slices.DeleteFunc(r.columns, func(c string) bool { return c == name })
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	out := NewRecord(r.index)
	for _, c := range r.columns {
		out.columns = append(out.columns, c)
		out.data[c] = slices.Clone(r.data[c])
	}
	return out
}

// ValidateIndex checks that the time index is strictly increasing.
func (r *Record) ValidateIndex() error {
	for i := 1; i < len(r.index); i++ {
		if !r.index[i].After(r.index[i-1]) {
			return fmt.Errorf("sample %d at %s: %w", i, r.index[i].Format(time.RFC3339Nano), ErrUnorderedIndex)
		}
	}
	return nil
}

// AlignedWith reports whether both records share the same time index.
func (r *Record) AlignedWith(other *Record) bool {
	return slices.EqualFunc(r.index, other.index, func(a, b time.Time) bool { return a.Equal(b) })
}

// Interval returns the spacing of the first two samples.
func (r *Record) Interval() (time.Duration, error) {
	if len(r.index) < 2 {
		return 0, ErrTooFewSamples
	}
	dt := r.index[1].Sub(r.index[0])
	if dt <= 0 {
		return 0, ErrUnorderedIndex
	}
	return dt, nil
}

// UniformInterval returns the first-sample interval after checking that every
// consecutive spacing is within tolerance (relative) of it.
func (r *Record) UniformInterval(tolerance float64) (time.Duration, error) {
	dt, err := r.Interval()
	if err != nil {
		return 0, err
	}
	limit := tolerance * float64(dt)
	for i := 2; i < len(r.index); i++ {
		d := r.index[i].Sub(r.index[i-1])
		if math.Abs(float64(d-dt)) > limit {
			return 0, fmt.Errorf("sample %d spacing %s vs %s: %w", i, d, dt, ErrNonUniformSampling)
		}
	}
	return dt, nil
}
