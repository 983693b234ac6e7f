package spatial

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geoderive/internal/domain"
)

// Sites roughly along the 40N parallel east of Boulder, CO.
func testEntries() []Entry {
	return []Entry{
		{ID: "USArray.D", Latitude: 40.0, Longitude: -100.0, Quality: 3, Locator: "d.xml"},
		{ID: "USArray.A", Latitude: 40.0, Longitude: -105.0, Quality: 5, Locator: "a.xml"},
		{ID: "USArray.C", Latitude: 40.0, Longitude: -103.0, Quality: 1, Locator: "c.xml"},
		{ID: "USArray.B", Latitude: 40.0, Longitude: -104.0, Quality: 4, Locator: "b.xml"},
	}
}

func mustIndex(t *testing.T, entries []Entry) *Index {
	t.Helper()
	ix, err := NewIndex(entries)
	require.NoError(t, err)
	return ix
}

func TestNewIndex_RejectsDuplicates(t *testing.T) {
	_, err := NewIndex([]Entry{{ID: "X"}, {ID: "X"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = NewIndex([]Entry{{ID: ""}})
	require.Error(t, err)
}

func TestByDistance_ZeroDistanceIsEmpty(t *testing.T) {
	ix := mustIndex(t, testEntries())
	assert.Empty(t, ix.ByDistance(40.0, -105.0, 0))
	assert.Empty(t, ix.ByDistance(40.0, -105.0, -10))
}

func TestByDistance_ExactBoundary(t *testing.T) {
	ix := mustIndex(t, testEntries())
	origin := orb.Point{-105.0, 40.0}

	for _, e := range testEntries() {
		d := DistanceKm(origin, orb.Point{e.Longitude, e.Latitude})
		got := ix.ByDistance(40.0, -105.0, d)

		for _, other := range testEntries() {
			od := DistanceKm(origin, orb.Point{other.Longitude, other.Latitude})
			if od <= d {
				assert.Contains(t, got, other.ID, "within %.3f km", d)
			} else {
				assert.NotContains(t, got, other.ID, "beyond %.3f km", d)
			}
		}
	}
}

func TestByDistance_OrderedAndDeterministic(t *testing.T) {
	entries := testEntries()
	ix1 := mustIndex(t, entries)
	reversed := []Entry{entries[3], entries[2], entries[1], entries[0]}
	ix2 := mustIndex(t, reversed)

	got1 := ix1.ByDistance(40.0, -105.0, 1000)
	got2 := ix2.ByDistance(40.0, -105.0, 1000)
	assert.Equal(t, []string{"USArray.A", "USArray.B", "USArray.C", "USArray.D"}, got1)
	assert.Equal(t, got1, got2)
}

func TestByDistance_KnownDistance(t *testing.T) {
	ix := mustIndex(t, testEntries())
	// One degree of longitude at 40N is roughly 85 km.
	assert.Equal(t, []string{"USArray.A", "USArray.B"}, ix.ByDistance(40.0, -105.0, 90))
	assert.Equal(t, []string{"USArray.A"}, ix.ByDistance(40.0, -105.0, 80))
}

func TestQualitySubset_Monotonic(t *testing.T) {
	ix := mustIndex(t, testEntries())
	for q1 := -1; q1 <= 6; q1++ {
		for q2 := q1 + 1; q2 <= 6; q2++ {
			lo := ix.QualitySubset(q1).(*Index)
			hi := ix.QualitySubset(q2).(*Index)
			for _, e := range hi.Entries() {
				_, ok := lo.Locate(e.ID)
				assert.True(t, ok, "q1=%d q2=%d missing %s", q1, q2, e.ID)
			}
			assert.GreaterOrEqual(t, lo.Len(), hi.Len())
		}
	}
}

func TestQualitySubset_ClampsAndDoesNotMutate(t *testing.T) {
	ix := mustIndex(t, testEntries())

	assert.Equal(t, 4, ix.QualitySubset(-3).Len())
	assert.Equal(t, 1, ix.QualitySubset(99).Len())
	assert.Equal(t, 2, ix.QualitySubset(4).Len())
	assert.Equal(t, 4, ix.Len(), "source index unchanged")

	sub := ix.QualitySubset(5)
	_, ok := sub.Locate("USArray.D")
	assert.False(t, ok)
	loc, ok := sub.Locate("USArray.A")
	assert.True(t, ok)
	assert.Equal(t, "a.xml", loc)
}

func TestClampQuality(t *testing.T) {
	assert.Equal(t, 0, ClampQuality(-1))
	assert.Equal(t, 3, ClampQuality(3))
	assert.Equal(t, 5, ClampQuality(12))
}

type countingLoader struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (c *countingLoader) Load(_ context.Context, path string) (domain.SpatialIndex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[path]++
	if c.err != nil {
		return nil, c.err
	}
	return NewIndex([]Entry{{ID: "USArray." + path}})
}

func TestCachedLoader_LoadsOncePerPath(t *testing.T) {
	inner := &countingLoader{calls: map[string]int{}}
	cached := NewCachedLoader(inner)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cached.Load(context.Background(), "a")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := cached.Load(context.Background(), "b")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls["a"])
	assert.Equal(t, 1, inner.calls["b"])
}

func TestCachedLoader_CachesFailure(t *testing.T) {
	inner := &countingLoader{calls: map[string]int{}, err: errors.New("bad catalog")}
	cached := NewCachedLoader(inner)

	_, err1 := cached.Load(context.Background(), "a")
	_, err2 := cached.Load(context.Background(), "a")
	require.Error(t, err1)
	assert.Equal(t, err1, err2)
	assert.Equal(t, 1, inner.calls["a"])
}

func TestCachedLoader_DoesNotCacheCancellation(t *testing.T) {
	inner := &countingLoader{calls: map[string]int{}, err: fmt.Errorf("read catalog: %w", context.Canceled)}
	cached := NewCachedLoader(inner)

	_, err := cached.Load(context.Background(), "a")
	require.ErrorIs(t, err, context.Canceled)

	inner.err = nil
	idx, err := cached.Load(context.Background(), "a")
	require.NoError(t, err, "a later caller reloads after a cancelled load")
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 2, inner.calls["a"])

	_, err = cached.Load(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls["a"], "successful load is cached")
}

func TestCachedLoader_CancelledCallerSkipsLoad(t *testing.T) {
	inner := &countingLoader{calls: map[string]int{}}
	cached := NewCachedLoader(inner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cached.Load(ctx, "a")
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, inner.calls["a"])

	_, err = cached.Load(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls["a"])
}
