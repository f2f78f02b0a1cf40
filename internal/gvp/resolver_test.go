package gvp

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/volcanoes/internal/cache"
	"github.com/sells-group/volcanoes/internal/dataset"
	"github.com/sells-group/volcanoes/internal/record"
)

const (
	holoceneVolcanoesCSV    = "Volcano_Number,Volcano_Name,Country\n1,A,Italy\n"
	pleistoceneVolcanoesCSV = "Volcano_Number,Volcano_Name,Country\n1,B,Italy\n2,C,Japan\n"
)

// fakeDownloader serves canned payloads and counts calls per dataset.
type fakeDownloader struct {
	mu       sync.Mutex
	payloads map[dataset.Dataset]string
	err      error
	calls    map[dataset.Dataset]int
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{
		payloads: map[dataset.Dataset]string{
			dataset.HoloceneVolcanoes:    holoceneVolcanoesCSV,
			dataset.PleistoceneVolcanoes: pleistoceneVolcanoesCSV,
			dataset.HoloceneEruptions:    "Volcano_Number,Eruption_Number\n1,10\n",
			dataset.PleistoceneEruptions: "Volcano_Number,Eruption_Number\n2,20\n",
		},
		calls: make(map[dataset.Dataset]int),
	}
}

func (f *fakeDownloader) Fetch(_ context.Context, ds dataset.Dataset) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ds]++
	if f.err != nil {
		return nil, &FetchError{Dataset: ds, URL: "https://gvp.test/" + string(ds), StatusCode: 503, Transient: true, Err: f.err}
	}
	return Repair([]byte(f.payloads[ds])), nil
}

func (f *fakeDownloader) URL(ds dataset.Dataset) (string, error) {
	if !ds.Valid() {
		return "", eris.Errorf("unknown dataset %q", ds)
	}
	return "https://gvp.test/" + string(ds), nil
}

func (f *fakeDownloader) count(ds dataset.Dataset) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ds]
}

func (f *fakeDownloader) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func newTestResolver(t *testing.T, opts ...ResolverOption) (*Resolver, *fakeDownloader, *cache.Store) {
	t.Helper()
	store, err := cache.New(t.TempDir())
	require.NoError(t, err)
	dl := newFakeDownloader()
	return NewResolver(dl, store, opts...), dl, store
}

func TestResolve_DownloadsThenUsesCache(t *testing.T) {
	r, dl, store := newTestResolver(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, dataset.HoloceneVolcanoes, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, FromNetwork, first.Origin)
	assert.Equal(t, 1, first.Collection.Len())
	assert.Equal(t, "https://gvp.test/holocene_volcanoes", first.Meta.SourceURL)
	assert.True(t, store.Has(dataset.HoloceneVolcanoes))

	second, err := r.Resolve(ctx, dataset.HoloceneVolcanoes, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, FromCache, second.Origin)
	assert.Equal(t, 1, dl.count(dataset.HoloceneVolcanoes))

	// Identical data both times.
	assert.Equal(t, first.Collection.Columns(), second.Collection.Columns())
	assert.Equal(t, first.Collection.At(0).Fields(), second.Collection.At(0).Fields())
	assert.Equal(t, first.Meta.FetchID, second.Meta.FetchID)
}

func TestResolve_ForceRefreshDownloads(t *testing.T) {
	r, dl, _ := newTestResolver(t)
	ctx := context.Background()

	_, err := r.Resolve(ctx, dataset.HoloceneVolcanoes, ResolveOptions{})
	require.NoError(t, err)
	res, err := r.Resolve(ctx, dataset.HoloceneVolcanoes, ResolveOptions{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, FromNetwork, res.Origin)
	assert.Equal(t, 2, dl.count(dataset.HoloceneVolcanoes))
}

func TestResolve_ForceRefreshFallsBackToCache(t *testing.T) {
	r, dl, _ := newTestResolver(t)
	ctx := context.Background()

	cached, err := r.Resolve(ctx, dataset.HoloceneVolcanoes, ResolveOptions{})
	require.NoError(t, err)

	dl.fail(errors.New("connection refused"))
	res, err := r.Resolve(ctx, dataset.HoloceneVolcanoes, ResolveOptions{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, FromFallback, res.Origin)
	assert.Equal(t, cached.Collection.At(0).Fields(), res.Collection.At(0).Fields())
	require.NotEmpty(t, res.Warnings)

	var stale *StaleCacheWarning
	require.True(t, errors.As(res.Warnings[0], &stale))
	assert.Equal(t, dataset.HoloceneVolcanoes, stale.Dataset)
	assert.True(t, cached.Meta.DownloadedAt.Equal(stale.DownloadedAt))

	var fe *FetchError
	require.True(t, errors.As(stale, &fe))
	assert.Equal(t, 503, fe.StatusCode)
}

func TestResolve_FailureWithoutCache(t *testing.T) {
	r, dl, store := newTestResolver(t)
	dl.fail(errors.New("no such host"))

	_, err := r.Resolve(context.Background(), dataset.PleistoceneEruptions, ResolveOptions{})
	require.Error(t, err)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, dataset.PleistoceneEruptions, fe.Dataset)
	assert.False(t, store.Has(dataset.PleistoceneEruptions))
}

func TestResolve_UnparseablePayloadIsNotCached(t *testing.T) {
	r, dl, store := newTestResolver(t)
	dl.payloads[dataset.HoloceneVolcanoes] = "Name,Country\nA,Italy\n"

	_, err := r.Resolve(context.Background(), dataset.HoloceneVolcanoes, ResolveOptions{})
	require.Error(t, err)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, err.Error(), "parse response")
	assert.False(t, store.Has(dataset.HoloceneVolcanoes))
}

func TestResolve_ParseWarnings(t *testing.T) {
	r, dl, _ := newTestResolver(t)
	dl.payloads[dataset.HoloceneVolcanoes] = "Volcano_Number,Volcano_Name\n1,A\n,B\n3,C\n"

	res, err := r.Resolve(context.Background(), dataset.HoloceneVolcanoes, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Collection.Len())
	require.Len(t, res.Warnings, 1)
	var pw record.ParseWarning
	require.True(t, errors.As(res.Warnings[0], &pw))
	assert.Equal(t, 2, pw.Row)
}

func TestResolve_RepairedPayloadIsCached(t *testing.T) {
	r, dl, store := newTestResolver(t)
	dl.payloads[dataset.HoloceneVolcanoes] = "Volcano_Number,Geological_Summary\n1,summit (< 100 m)\n"

	res, err := r.Resolve(context.Background(), dataset.HoloceneVolcanoes, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "summit (&lt; 100 m)", res.Collection.At(0).GeologicalSummary())

	payload, _, err := store.Get(dataset.HoloceneVolcanoes)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "summit (&lt; 100 m)")
	assert.NotContains(t, string(payload), "(< ")
}

func TestResolve_RefreshCadence(t *testing.T) {
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	store, err := cache.New(t.TempDir(), cache.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	dl := newFakeDownloader()
	r := NewResolver(dl, store, WithRefresh(dataset.MaxAge(time.Hour)), WithNow(func() time.Time { return now }))
	ctx := context.Background()

	_, err = r.Resolve(ctx, dataset.HoloceneVolcanoes, ResolveOptions{})
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	res, err := r.Resolve(ctx, dataset.HoloceneVolcanoes, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, FromCache, res.Origin)

	now = now.Add(time.Hour)
	res, err = r.Resolve(ctx, dataset.HoloceneVolcanoes, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, FromNetwork, res.Origin)
	assert.Equal(t, 2, dl.count(dataset.HoloceneVolcanoes))

	// Stale and offline: the old copy is still served.
	now = now.Add(2 * time.Hour)
	dl.fail(eris.New("offline"))
	res, err = r.Resolve(ctx, dataset.HoloceneVolcanoes, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, FromFallback, res.Origin)
}

func TestResolve_CorruptCacheIsRefetched(t *testing.T) {
	r, dl, store := newTestResolver(t)
	_, err := store.Put(dataset.HoloceneVolcanoes, []byte("Name\nA\n"), "old")
	require.NoError(t, err)

	res, err := r.Resolve(context.Background(), dataset.HoloceneVolcanoes, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, FromNetwork, res.Origin)
	assert.Equal(t, 1, dl.count(dataset.HoloceneVolcanoes))
}

// unreadableCache reports an entry but fails to read its payload.
type unreadableCache struct {
	*cache.Store
}

func (c unreadableCache) Get(ds dataset.Dataset) ([]byte, *cache.Metadata, error) {
	return nil, nil, &cache.Error{Op: "get", Dataset: ds, Path: c.PayloadPath(ds), Err: syscall.EIO}
}

func TestResolve_CacheReadErrorIsReturned(t *testing.T) {
	store, err := cache.New(t.TempDir())
	require.NoError(t, err)
	_, err = store.Put(dataset.HoloceneVolcanoes, []byte(holoceneVolcanoesCSV), "old")
	require.NoError(t, err)

	dl := newFakeDownloader()
	r := NewResolver(dl, unreadableCache{store})
	ctx := context.Background()

	t.Run("fresh entry", func(t *testing.T) {
		_, err := r.Resolve(ctx, dataset.HoloceneVolcanoes, ResolveOptions{})
		var ce *cache.Error
		require.True(t, errors.As(err, &ce))
		assert.ErrorIs(t, err, syscall.EIO)
		assert.Equal(t, 0, dl.count(dataset.HoloceneVolcanoes))
	})

	t.Run("fallback after failed download", func(t *testing.T) {
		dl.fail(errors.New("down"))
		_, err := r.Resolve(ctx, dataset.HoloceneVolcanoes, ResolveOptions{ForceRefresh: true})
		var ce *cache.Error
		require.True(t, errors.As(err, &ce))
		var fe *FetchError
		assert.True(t, errors.As(err, &fe))
		assert.Equal(t, 1, dl.count(dataset.HoloceneVolcanoes))
	})
}

// unwritableCache reads normally but fails every write.
type unwritableCache struct {
	*cache.Store
}

func (c unwritableCache) Put(ds dataset.Dataset, _ []byte, _ string) (*cache.Metadata, error) {
	return nil, &cache.Error{Op: "put", Dataset: ds, Path: c.PayloadPath(ds), Err: syscall.ENOSPC}
}

func TestResolve_CacheWriteErrorIsNotMaskedByFallback(t *testing.T) {
	store, err := cache.New(t.TempDir())
	require.NoError(t, err)
	_, err = store.Put(dataset.HoloceneVolcanoes, []byte(holoceneVolcanoesCSV), "old")
	require.NoError(t, err)

	r := NewResolver(newFakeDownloader(), unwritableCache{store})
	res, err := r.Resolve(context.Background(), dataset.HoloceneVolcanoes, ResolveOptions{ForceRefresh: true})
	assert.Nil(t, res)
	var ce *cache.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "put", ce.Op)
	assert.ErrorIs(t, err, syscall.ENOSPC)
}

func TestResolve_StoresRequestURL(t *testing.T) {
	r, _, store := newTestResolver(t)
	_, err := r.Resolve(context.Background(), dataset.PleistoceneVolcanoes, ResolveOptions{})
	require.NoError(t, err)
	meta, err := store.Info(dataset.PleistoceneVolcanoes)
	require.NoError(t, err)
	assert.Equal(t, "https://gvp.test/pleistocene_volcanoes", meta.SourceURL)
}

func TestResolve_UnknownDataset(t *testing.T) {
	r, _, _ := newTestResolver(t)
	_, err := r.Resolve(context.Background(), dataset.Dataset("nope"), ResolveOptions{})
	var ce *ConfigurationError
	require.True(t, errors.As(err, &ce))
}
