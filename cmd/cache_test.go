package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/volcanoes/internal/cache"
	"github.com/sells-group/volcanoes/internal/dataset"
	"github.com/sells-group/volcanoes/internal/gvp"
	"github.com/sells-group/volcanoes/internal/record"
)

type fakeDownloader struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	fail     dataset.Dataset
}

func (f *fakeDownloader) Download(_ context.Context, ds dataset.Dataset, force bool) (*gvp.Result, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	if !force {
		return nil, errors.New("refresh must force")
	}
	if ds == f.fail {
		return nil, errors.New("gateway timeout")
	}
	return &gvp.Result{Dataset: ds, Origin: gvp.FromNetwork, Collection: record.Empty(ds)}, nil
}

func TestRefreshAll(t *testing.T) {
	d := &fakeDownloader{}
	results, err := refreshAll(context.Background(), d, dataset.All(), 2)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, ds := range dataset.All() {
		assert.Equal(t, ds, results[i].Dataset)
		assert.Equal(t, gvp.FromNetwork, results[i].Result.Origin)
	}
	assert.LessOrEqual(t, d.peak.Load(), int32(2))
}

func TestRefreshAll_FailureDoesNotStopOthers(t *testing.T) {
	d := &fakeDownloader{fail: dataset.PleistoceneVolcanoes}
	results, err := refreshAll(context.Background(), d, dataset.All(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway timeout")

	var ok int
	for _, r := range results {
		if r.Err == nil {
			ok++
		}
	}
	assert.Equal(t, 3, ok)

	var buf bytes.Buffer
	writeRefreshResults(&buf, results)
	assert.Contains(t, buf.String(), "failed: gateway timeout")
	assert.Contains(t, buf.String(), "holocene_volcanoes")
}

func cacheStatuses() []cache.Status {
	at := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)
	return []cache.Status{
		{
			Dataset: dataset.HoloceneVolcanoes,
			Cached:  true,
			Path:    "/c/holocene_volcanoes.csv",
			Meta:    &cache.Metadata{Dataset: dataset.HoloceneVolcanoes, DownloadedAt: at, Bytes: 2048, Records: 1215},
		},
		{Dataset: dataset.HoloceneEruptions, Path: "/c/holocene_eruptions.csv"},
	}
}

func TestWriteCacheInfo(t *testing.T) {
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeCacheInfo(&buf, cacheStatuses(), cacheStatuses()[0].Meta, "table", now))
		out := buf.String()
		assert.Contains(t, out, "DATASET")
		assert.Contains(t, out, "2h0m0s")
		assert.Contains(t, out, "2.0 KiB")
		assert.Contains(t, out, "1215")
		assert.Regexp(t, `holocene_eruptions\s+no`, out)
		assert.Regexp(t, `Latest download: holocene_volcanoes at .* \(2h0m0s ago\)`, out)
	})

	t.Run("table without downloads", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeCacheInfo(&buf, cacheStatuses()[1:], nil, "table", now))
		assert.NotContains(t, buf.String(), "Latest download")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeCacheInfo(&buf, cacheStatuses(), nil, "json", now))
		var got []cache.Status
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, 1215, got[0].Meta.Records)
		assert.Nil(t, got[1].Meta)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeCacheInfo(&buf, cacheStatuses(), nil, "yaml", now))
		var got []map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "holocene_volcanoes", got[0]["dataset"])
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, writeCacheInfo(&bytes.Buffer{}, nil, nil, "xml", now))
	})
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, humanBytes(tt.in))
	}
}

func TestWriteStats(t *testing.T) {
	avg, lo, hi := 2000.0, 1281.0, 3357.0
	var buf bytes.Buffer
	require.NoError(t, writeStats(&buf, "holocene_volcanoes", record.Stats{
		Entity:       dataset.Volcanoes,
		Total:        2,
		Countries:    1,
		VolcanoTypes: 2,
		AvgElevation: &avg,
		MinElevation: &lo,
		MaxElevation: &hi,
	}, "table"))
	out := buf.String()
	assert.Contains(t, out, "Total volcanoes:")
	assert.Contains(t, out, "1281 m to 3357 m")

	buf.Reset()
	require.NoError(t, writeStats(&buf, "holocene_eruptions", record.Stats{Entity: dataset.Eruptions, Total: 3, UniqueVolcanoes: 2}, "table"))
	assert.Contains(t, buf.String(), "Unique volcanoes:")
	assert.NotContains(t, buf.String(), "Volcano types")
}
