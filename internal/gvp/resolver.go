package gvp

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/volcanoes/internal/cache"
	"github.com/sells-group/volcanoes/internal/dataset"
	"github.com/sells-group/volcanoes/internal/record"
)

// Origin tells where a resolved collection came from.
type Origin string

const (
	// FromCache means the cache entry was fresh and no request was made.
	FromCache Origin = "cache"
	// FromNetwork means the dataset was downloaded and the cache updated.
	FromNetwork Origin = "network"
	// FromFallback means the download failed and the existing cache entry was used.
	FromFallback Origin = "fallback"
)

// Downloader fetches raw payloads. *Source implements it.
type Downloader interface {
	Fetch(ctx context.Context, ds dataset.Dataset) ([]byte, error)
	URL(ds dataset.Dataset) (string, error)
}

// Cache is the subset of *cache.Store the resolver needs.
type Cache interface {
	Info(ds dataset.Dataset) (*cache.Metadata, error)
	Get(ds dataset.Dataset) ([]byte, *cache.Metadata, error)
	Put(ds dataset.Dataset, payload []byte, source string) (*cache.Metadata, error)
}

// ResolveOptions controls a single Resolve call.
type ResolveOptions struct {
	// ForceRefresh downloads even when a fresh cache entry exists.
	ForceRefresh bool
}

// Result is a resolved dataset.
type Result struct {
	Dataset    dataset.Dataset
	Origin     Origin
	Collection *record.Collection
	Meta       *cache.Metadata
	// Warnings holds skipped-row ParseWarnings and, for FromFallback, a *StaleCacheWarning.
	Warnings []error
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRefresh sets the policy that decides when a cache entry is too old to use.
func WithRefresh(c dataset.Cadence) ResolverOption {
	return func(r *Resolver) { r.refresh = c }
}

// WithNow overrides the clock used for freshness checks.
func WithNow(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// Resolver decides per dataset whether to use the cache or download, and
// parses the payload into a collection.
type Resolver struct {
	source  Downloader
	store   Cache
	refresh dataset.Cadence
	now     func() time.Time
}

// NewResolver creates a Resolver. The default refresh policy never expires entries.
func NewResolver(source Downloader, store Cache, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		source:  source,
		store:   store,
		refresh: dataset.Never,
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the collection for ds. It performs at most one download.
//
// A fresh cache entry is used as is unless opts.ForceRefresh is set. Otherwise
// the dataset is downloaded, parsed and stored. If the download fails and a
// cache entry exists, the cached data is returned with a *StaleCacheWarning.
// Without a cache entry the *FetchError is returned. A cache read failure is
// returned as the *cache.Error; it never triggers a download.
func (r *Resolver) Resolve(ctx context.Context, ds dataset.Dataset, opts ResolveOptions) (*Result, error) {
	if !ds.Valid() {
		return nil, &ConfigurationError{Field: "dataset", Reason: "unknown dataset " + string(ds)}
	}
	log := zap.L().With(zap.String("component", "gvp.resolver"), zap.String("dataset", string(ds)))

	meta, err := r.store.Info(ds)
	if err != nil {
		return nil, err
	}

	if meta != nil && !opts.ForceRefresh && !r.refresh.Stale(r.now(), meta.DownloadedAt) {
		res, err := r.fromCache(ctx, ds, FromCache)
		if isCacheError(err) {
			return nil, err
		}
		if err == nil && res != nil {
			log.Debug("using cached dataset",
				zap.Time("downloaded_at", meta.DownloadedAt),
				zap.Int("records", res.Collection.Len()),
			)
			return res, nil
		}
		if err != nil {
			log.Warn("cached dataset unusable, downloading", zap.Error(err))
		}
		meta = nil
	}

	res, fetchErr := r.download(ctx, ds)
	if fetchErr == nil {
		log.Info("resolved dataset",
			zap.String("source", string(FromNetwork)),
			zap.Int("records", res.Collection.Len()),
			zap.Int("warnings", len(res.Warnings)),
		)
		return res, nil
	}
	if meta == nil || ctx.Err() != nil || isCacheError(fetchErr) {
		return nil, fetchErr
	}

	res, err = r.fromCache(ctx, ds, FromFallback)
	if isCacheError(err) {
		log.Warn("download failed and cache unreadable", zap.Error(fetchErr))
		return nil, errors.Join(err, fetchErr)
	}
	if err != nil || res == nil {
		return nil, fetchErr
	}
	warning := &StaleCacheWarning{Dataset: ds, DownloadedAt: res.Meta.DownloadedAt, Cause: fetchErr}
	res.Warnings = append([]error{warning}, res.Warnings...)
	log.Warn("download failed, serving cached dataset",
		zap.String("source", string(FromFallback)),
		zap.Time("downloaded_at", res.Meta.DownloadedAt),
		zap.Error(fetchErr),
	)
	return res, nil
}

// download fetches, parses and stores ds. Fetch and parse failures are
// returned as *FetchError; a failed store returns the cache error.
func (r *Resolver) download(ctx context.Context, ds dataset.Dataset) (*Result, error) {
	u, err := r.source.URL(ds)
	if err != nil {
		return nil, newFetchError(ds, "", err)
	}
	payload, err := r.source.Fetch(ctx, ds)
	if err != nil {
		return nil, err
	}

	coll, warnings, err := record.ParseBytes(ctx, ds, payload)
	if err != nil {
		return nil, newFetchError(ds, u, eris.Wrap(err, "parse response"))
	}

	meta, err := r.store.Put(ds, payload, u)
	if err != nil {
		return nil, err
	}
	return &Result{
		Dataset:    ds,
		Origin:     FromNetwork,
		Collection: coll,
		Meta:       meta,
		Warnings:   asErrors(ds, warnings),
	}, nil
}

// fromCache parses the cached payload. It returns (nil, nil) if the entry
// vanished since it was checked. Read failures come back as *cache.Error;
// any other error means the payload no longer parses.
func (r *Resolver) fromCache(ctx context.Context, ds dataset.Dataset, origin Origin) (*Result, error) {
	payload, meta, err := r.store.Get(ds)
	if err != nil || meta == nil {
		return nil, err
	}
	coll, warnings, err := record.ParseBytes(ctx, ds, payload)
	if err != nil {
		return nil, eris.Wrapf(err, "parse cached %s", ds)
	}
	return &Result{
		Dataset:    ds,
		Origin:     origin,
		Collection: coll,
		Meta:       meta,
		Warnings:   asErrors(ds, warnings),
	}, nil
}

func isCacheError(err error) bool {
	var ce *cache.Error
	return errors.As(err, &ce)
}

func asErrors(ds dataset.Dataset, warnings []record.ParseWarning) []error {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]error, len(warnings))
	for i, w := range warnings {
		out[i] = w
		zap.L().Debug("skipped row",
			zap.String("dataset", string(ds)),
			zap.Int("row", w.Row),
			zap.String("reason", w.Reason),
		)
	}
	zap.L().Warn("skipped rows while parsing",
		zap.String("dataset", string(ds)),
		zap.Int("count", len(warnings)),
		zap.String("first", warnings[0].Error()),
	)
	return out
}
