package region

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geoderive/internal/domain"
	"github.com/couchcryptid/geoderive/internal/observability"
	"github.com/couchcryptid/geoderive/internal/transfer"
)

const catalogJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "Rocky-Mountains"},
      "geometry": {"type": "Polygon", "coordinates": [[[-110, 35], [-100, 35], [-100, 45], [-110, 45], [-110, 35]]]}
    },
    {
      "type": "Feature",
      "properties": {"name": "Great Plains"},
      "geometry": {"type": "Polygon", "coordinates": [[[-105, 30], [-95, 30], [-95, 50], [-105, 50], [-105, 30]]]}
    },
    {
      "type": "Feature",
      "properties": {"name": "Islands"},
      "geometry": {"type": "MultiPolygon", "coordinates": [
        [[[-80, 20], [-79, 20], [-79, 21], [-80, 21], [-80, 20]]],
        [[[-70, 20], [-69, 20], [-69, 21], [-70, 21], [-70, 20]]]
      ]}
    },
    {
      "type": "Feature",
      "properties": {},
      "geometry": {"type": "Point", "coordinates": [0, 0]}
    }
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog(writeFile(t, "regions.geojson", catalogJSON), "name")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	tests := []struct {
		name     string
		lat, lon float64
		want     string
		found    bool
	}{
		{"boulder", 40, -105.5, "Rocky-Mountains", true},
		{"overlap first wins", 40, -102, "Rocky-Mountains", true},
		{"plains only", 40, -97, "Great Plains", true},
		{"second island", 20.5, -69.5, "Islands", true},
		{"between islands", 20.5, -75, "", false},
		{"ocean", 0, 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := c.Lookup(tt.lat, tt.lon)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyRegion_Normalizes(t *testing.T) {
	c, err := ParseCatalog([]byte(catalogJSON), "name")
	require.NoError(t, err)

	name, ok := domain.ClassifyRegion(c, 40.0, -105.0)
	require.True(t, ok)
	assert.Equal(t, "Rocky_Mountains", name)
}

func TestParseCatalog_Errors(t *testing.T) {
	_, err := ParseCatalog([]byte("not json"), "name")
	assert.Error(t, err)

	_, err = ParseCatalog([]byte(catalogJSON), "PROVINCE")
	assert.ErrorContains(t, err, "PROVINCE")

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.geojson"), "name")
	assert.Error(t, err)
}

// --- mocks ---

type countingLookup struct {
	calls int
	name  string
	found bool
}

func (m *countingLookup) Lookup(_, _ float64) (string, bool) {
	m.calls++
	return m.name, m.found
}

func TestCachedLookup_Hit(t *testing.T) {
	inner := &countingLookup{name: "Rocky-Mountains", found: true}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedLookup(inner, 10, metrics)

	for i := 0; i < 3; i++ {
		name, ok := cached.Lookup(40, -105)
		assert.True(t, ok)
		assert.Equal(t, "Rocky-Mountains", name)
	}

	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RegionCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RegionCache.WithLabelValues("miss")))
}

func TestCachedLookup_CachesMisses(t *testing.T) {
	inner := &countingLookup{}
	cached := NewCachedLookup(inner, 10, nil)

	_, ok := cached.Lookup(0, 0)
	assert.False(t, ok)
	_, ok = cached.Lookup(0, 0)
	assert.False(t, ok)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedLookup_DifferentKeysMiss(t *testing.T) {
	inner := &countingLookup{name: "X", found: true}
	cached := NewCachedLookup(inner, 10, nil)

	cached.Lookup(40, -105)
	cached.Lookup(40, -104)

	assert.Equal(t, 2, inner.calls)
}

const modelsYAML = `
models:
  Rocky-Mountains:
    layers:
      - {thickness_m: 15000, resistivity_ohm_m: 500}
      - {thickness_m: 85000, resistivity_ohm_m: 100}
      - {resistivity_ohm_m: 10}
  Great Plains:
    layers:
      - {resistivity_ohm_m: 50}
`

func TestLoadModels(t *testing.T) {
	m, err := LoadModels(writeFile(t, "models.yaml", modelsYAML))
	require.NoError(t, err)

	rocky, ok := m.Model("Rocky_Mountains")
	require.True(t, ok)
	assert.Len(t, rocky.Layers, 3)
	assert.Equal(t, 500.0, rocky.Layers[0].ResistivityOhmM)

	_, ok = m.Model("Great_Plains")
	assert.True(t, ok)
	_, ok = m.Model("Rocky-Mountains")
	assert.False(t, ok, "names are stored normalized")
}

func TestParseModels_Invalid(t *testing.T) {
	_, err := ParseModels([]byte("models:\n  Bad:\n    layers: []\n"))
	assert.ErrorContains(t, err, "Bad")

	_, err = ParseModels([]byte("models:\n  Bad:\n    layers:\n      - {resistivity_ohm_m: -1}\n"))
	assert.Error(t, err)

	_, err = ParseModels([]byte(":::"))
	assert.Error(t, err)
}

func TestModels_ApplyRegion(t *testing.T) {
	m, err := ParseModels([]byte(modelsYAML))
	require.NoError(t, err)

	n := 256
	bx := make([]float64, n)
	by := make([]float64, n)
	for i := range bx {
		bx[i] = math.Sin(float64(i) / 5)
		by[i] = math.Cos(float64(i) / 9)
	}

	ex, ey, err := m.ApplyRegion(context.Background(), bx, by, time.Second, "Great_Plains")
	require.NoError(t, err)

	wantEx, wantEy, err := transfer.Apply(bx, by, time.Second, transfer.LayeredEarth{Layers: []transfer.Layer{{ResistivityOhmM: 50}}})
	require.NoError(t, err)
	assert.Equal(t, wantEx, ex)
	assert.Equal(t, wantEy, ey)
}

func TestModels_ApplyRegionUnknown(t *testing.T) {
	m, err := ParseModels([]byte(modelsYAML))
	require.NoError(t, err)

	_, _, err = m.ApplyRegion(context.Background(), []float64{1, 2}, []float64{1, 2}, time.Second, "Atlantis")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestModels_ApplyRegionCanceled(t *testing.T) {
	m, err := ParseModels([]byte(modelsYAML))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = m.ApplyRegion(ctx, []float64{1, 2}, []float64{1, 2}, time.Second, "Great_Plains")
	assert.ErrorIs(t, err, context.Canceled)
}
