// Package gvp downloads Smithsonian Global Volcanism Program datasets, keeps
// them in a local cache and turns them into record collections.
package gvp

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/volcanoes/internal/dataset"
	"github.com/sells-group/volcanoes/internal/fetcher"
)

// DefaultTimeout bounds a single dataset download.
const DefaultTimeout = 60 * time.Second

var (
	unescapedLT = []byte("(< ")
	escapedLT   = []byte("(&lt; ")
)

// Repair fixes the one known markup defect in GVP responses: a bare "(< "
// inside free text, which breaks XML consumers downstream.
func Repair(payload []byte) []byte {
	if !bytes.Contains(payload, unescapedLT) {
		return payload
	}
	return bytes.ReplaceAll(payload, unescapedLT, escapedLT)
}

// Source downloads raw dataset payloads from the GVP WFS endpoint. It never
// touches the cache.
type Source struct {
	fetcher fetcher.Fetcher
	baseURL string
	timeout time.Duration
}

// NewSource creates a Source. An empty baseURL uses dataset.DefaultBaseURL and
// a zero timeout uses DefaultTimeout.
func NewSource(f fetcher.Fetcher, baseURL string, timeout time.Duration) *Source {
	if baseURL == "" {
		baseURL = dataset.DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Source{fetcher: f, baseURL: baseURL, timeout: timeout}
}

// URL returns the request URL for ds.
func (s *Source) URL(ds dataset.Dataset) (string, error) {
	return ds.URL(s.baseURL)
}

// Fetch downloads, repairs and sanity-checks the CSV payload for ds.
// Every failure is a *FetchError.
func (s *Source) Fetch(ctx context.Context, ds dataset.Dataset) ([]byte, error) {
	u, err := ds.URL(s.baseURL)
	if err != nil {
		return nil, newFetchError(ds, s.baseURL, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log := zap.L().With(zap.String("component", "gvp.source"), zap.String("dataset", string(ds)))
	log.Info("downloading dataset", zap.String("url", u))
	start := time.Now()

	body, err := s.fetcher.Download(ctx, u)
	if err != nil {
		return nil, newFetchError(ds, u, err)
	}
	defer body.Close() //nolint:errcheck

	payload, err := io.ReadAll(body)
	if err != nil {
		return nil, newFetchError(ds, u, eris.Wrap(err, "read response body"))
	}

	payload = Repair(payload)
	if err := validate(ctx, payload); err != nil {
		return nil, newFetchError(ds, u, err)
	}

	log.Info("downloaded dataset",
		zap.Int("bytes", len(payload)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return payload, nil
}

// serviceException is the body of a GeoServer OGC error report.
type serviceException struct {
	Code    string `xml:"code,attr"`
	Locator string `xml:"locator,attr"`
	Message string `xml:",chardata"`
}

// validate rejects payloads that are clearly not a CSV table: empty bodies,
// GeoServer exception reports, and headers with no usable column names.
func validate(ctx context.Context, payload []byte) error {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(payload, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 {
		return eris.New("empty response")
	}

	if trimmed[0] == '<' {
		exc, err := fetcher.FindXML[serviceException](bytes.NewReader(trimmed), "ServiceException")
		if err == nil && exc != nil {
			msg := strings.TrimSpace(exc.Message)
			if exc.Code != "" {
				msg = exc.Code + ": " + msg
			}
			return eris.Errorf("service exception: %s", msg)
		}
		return eris.New("unexpected XML response, expected CSV")
	}

	header, err := firstRow(ctx, trimmed)
	if err != nil {
		return eris.Wrap(err, "malformed CSV header")
	}
	for _, col := range header {
		if strings.TrimSpace(col) != "" {
			return nil
		}
	}
	return eris.New("CSV header has no column names")
}

func firstRow(ctx context.Context, payload []byte) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh := fetcher.StreamCSV(ctx, bytes.NewReader(payload), fetcher.CSVOptions{LazyQuotes: true})
	row, ok := <-rowCh
	cancel()
	for range rowCh {
	}
	if ok {
		return row, nil
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return nil, eris.New("no header row")
}
