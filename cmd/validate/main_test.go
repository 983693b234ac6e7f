package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geoderive/internal/adapter/store"
	"github.com/couchcryptid/geoderive/internal/domain"
)

var t0 = time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)

func makeRecord(t *testing.T, times []time.Time, cols map[string][]float64, order ...string) *domain.Record {
	t.Helper()
	rec := domain.NewRecord(times)
	for _, name := range order {
		require.NoError(t, rec.Set(name, cols[name]))
	}
	return rec
}

func minutes(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = t0.Add(time.Duration(i) * time.Minute)
	}
	return out
}

func newStore() *store.Store {
	return store.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCheckBundle(t *testing.T) {
	ctx := context.Background()
	st := newStore()
	root := t.TempDir()
	b := map[string][]float64{domain.ColumnBx: {1, 2, 3}, domain.ColumnBy: {4, 5, 6}}

	good := filepath.Join(root, "good")
	require.NoError(t, st.Write(ctx, good, makeRecord(t, minutes(3), b, domain.ColumnBx, domain.ColumnBy), "B", domain.Header{}))
	e := map[string][]float64{"CP1_Ex": {1, 2, 3}, "CP1_Ey": {1, math.NaN(), 3}}
	require.NoError(t, st.Write(ctx, good, makeRecord(t, minutes(3), e, "CP1_Ex", "CP1_Ey"), "E", domain.Header{}))

	sourceOnly := filepath.Join(root, "source-only")
	require.NoError(t, st.Write(ctx, sourceOnly, makeRecord(t, minutes(3), b, domain.ColumnBx, domain.ColumnBy), "B", domain.Header{}))

	bad := filepath.Join(root, "bad")
	uneven := []time.Time{t0, t0.Add(time.Minute), t0.Add(5 * time.Minute)}
	require.NoError(t, st.Write(ctx, bad, makeRecord(t, uneven, b, domain.ColumnBx), "B", domain.Header{}))
	e2 := map[string][]float64{"CP1_Ex": {1, 2}, "IP2_Ey": {math.NaN(), math.NaN()}}
	require.NoError(t, st.Write(ctx, bad, makeRecord(t, minutes(2), e2, "CP1_Ex", "IP2_Ey"), "E", domain.Header{}))

	assert.Empty(t, checkBundle(ctx, st, good, "B", "E", 0.01))
	assert.Empty(t, checkBundle(ctx, st, sourceOnly, "B", "E", 0.01))

	problems := checkBundle(ctx, st, bad, "B", "E", 0.01)
	assert.Len(t, problems, 6)
	assert.Contains(t, problems, "source record has no By column")
	assert.Contains(t, problems, "model CP1 has Ex without Ey")
	assert.Contains(t, problems, "model IP2 has Ey without Ex")
	assert.Contains(t, problems, "column IP2_Ey has no finite values")
	assert.Contains(t, problems, "derived index does not match source (2 vs 3 samples)")

	missing := checkBundle(ctx, st, filepath.Join(root, "nope"), "B", "E", 0.01)
	require.Len(t, missing, 1)
	assert.Contains(t, missing[0], "source record")
}

func TestRun_ExitCodes(t *testing.T) {
	ctx := context.Background()
	st := newStore()
	dir := filepath.Join(t.TempDir(), "bundle")
	b := map[string][]float64{domain.ColumnBx: {1, 2}, domain.ColumnBy: {3, 4}}
	require.NoError(t, st.Write(ctx, dir, makeRecord(t, minutes(2), b, domain.ColumnBx, domain.ColumnBy), "B", domain.Header{}))

	var out bytes.Buffer
	assert.Equal(t, 0, run([]string{dir}, &out))
	assert.Contains(t, out.String(), "PASS "+dir)
	assert.Contains(t, out.String(), "1/1 bundles valid")

	out.Reset()
	assert.Equal(t, 1, run([]string{dir, filepath.Join(t.TempDir(), "missing")}, &out))
	assert.Contains(t, out.String(), "1/2 bundles valid")

	assert.Equal(t, 2, run(nil, io.Discard))
}
