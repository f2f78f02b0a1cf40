package gvp

import (
	"context"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/volcanoes/internal/cache"
	"github.com/sells-group/volcanoes/internal/dataset"
	"github.com/sells-group/volcanoes/internal/fetcher"
	"github.com/sells-group/volcanoes/internal/record"
)

// Epochs selects which geologic epochs to include.
type Epochs struct {
	Holocene    bool
	Pleistocene bool
}

// HoloceneOnly is the default selection.
var HoloceneOnly = Epochs{Holocene: true}

// BothEpochs selects Holocene and Pleistocene data.
var BothEpochs = Epochs{Holocene: true, Pleistocene: true}

// Options configures a Client.
type Options struct {
	CacheDir  string
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	RateLimit float64
	Refresh   dataset.Cadence

	// Fetcher replaces the default HTTP fetcher.
	Fetcher fetcher.Fetcher
	// Clock replaces time.Now for cache stamps and freshness checks.
	Clock func() time.Time
}

// Client is the entry point for retrieving GVP records.
type Client struct {
	store    *cache.Store
	source   *Source
	resolver *Resolver
}

// New validates opts and builds a Client with its own cache store.
func New(opts Options) (*Client, error) {
	if opts.Timeout < 0 {
		return nil, &ConfigurationError{Field: "timeout", Reason: "must not be negative"}
	}
	if opts.RateLimit < 0 {
		return nil, &ConfigurationError{Field: "rate_limit", Reason: "must not be negative"}
	}
	if opts.BaseURL != "" {
		u, err := url.Parse(opts.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, &ConfigurationError{Field: "base_url", Reason: "must be an absolute URL, got " + opts.BaseURL}
		}
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	store, err := cache.New(opts.CacheDir, cache.WithClock(clock))
	if err != nil {
		return nil, err
	}

	f := opts.Fetcher
	if f == nil {
		f = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent: opts.UserAgent,
			Timeout:   opts.Timeout,
			RateLimit: rate.Limit(opts.RateLimit),
		})
	}
	source := NewSource(f, opts.BaseURL, opts.Timeout)

	return &Client{
		store:    store,
		source:   source,
		resolver: NewResolver(source, store, WithRefresh(opts.Refresh), WithNow(clock)),
	}, nil
}

// Store returns the client's cache store.
func (c *Client) Store() *cache.Store { return c.store }

// GetRecords resolves the requested epochs of entity and merges them when both
// are selected. The returned warnings are non-fatal.
func (c *Client) GetRecords(ctx context.Context, entity dataset.Entity, epochs Epochs, force bool) (*record.Collection, []error, error) {
	if entity != dataset.Volcanoes && entity != dataset.Eruptions {
		return nil, nil, &ConfigurationError{Field: "entity", Reason: "unknown entity " + string(entity)}
	}
	if !epochs.Holocene && !epochs.Pleistocene {
		return nil, nil, &ConfigurationError{Field: "epochs", Reason: "at least one of holocene or pleistocene must be selected"}
	}

	opts := ResolveOptions{ForceRefresh: force}
	var (
		holocene, pleistocene *record.Collection
		warnings              []error
	)
	if epochs.Holocene {
		res, err := c.resolver.Resolve(ctx, dataset.For(dataset.Holocene, entity), opts)
		if err != nil {
			return nil, nil, err
		}
		holocene = res.Collection
		warnings = append(warnings, res.Warnings...)
	}
	if epochs.Pleistocene {
		res, err := c.resolver.Resolve(ctx, dataset.For(dataset.Pleistocene, entity), opts)
		if err != nil {
			return nil, nil, err
		}
		pleistocene = res.Collection
		warnings = append(warnings, res.Warnings...)
	}

	switch {
	case holocene == nil:
		return pleistocene, warnings, nil
	case pleistocene == nil:
		return holocene, warnings, nil
	default:
		return record.Merge(holocene, pleistocene), warnings, nil
	}
}

// GetVolcanoes returns volcano records for the selected epochs.
func (c *Client) GetVolcanoes(ctx context.Context, epochs Epochs, force bool) (*record.Collection, []error, error) {
	return c.GetRecords(ctx, dataset.Volcanoes, epochs, force)
}

// GetEruptions returns eruption records for the selected epochs.
func (c *Client) GetEruptions(ctx context.Context, epochs Epochs, force bool) (*record.Collection, []error, error) {
	return c.GetRecords(ctx, dataset.Eruptions, epochs, force)
}

// Download resolves a single dataset, typically to warm the cache.
func (c *Client) Download(ctx context.Context, ds dataset.Dataset, force bool) (*Result, error) {
	return c.resolver.Resolve(ctx, ds, ResolveOptions{ForceRefresh: force})
}

// CacheInfo reports the cache state of the given datasets, or all of them.
func (c *Client) CacheInfo(datasets ...dataset.Dataset) ([]cache.Status, error) {
	if len(datasets) == 0 {
		return c.store.InfoAll()
	}
	out := make([]cache.Status, 0, len(datasets))
	for _, ds := range datasets {
		meta, err := c.store.Info(ds)
		if err != nil {
			return nil, err
		}
		out = append(out, cache.Status{
			Dataset: ds,
			Cached:  meta != nil,
			Path:    c.store.PayloadPath(ds),
			Meta:    meta,
		})
	}
	return out, nil
}

// ClearCache removes the given datasets from the cache, or all of them.
func (c *Client) ClearCache(datasets ...dataset.Dataset) error {
	return c.store.Clear(datasets...)
}

// URL returns the download URL for ds.
func (c *Client) URL(ds dataset.Dataset) (string, error) {
	return c.source.URL(ds)
}
