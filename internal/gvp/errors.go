package gvp

import (
	"errors"
	"fmt"
	"time"

	"github.com/sells-group/volcanoes/internal/dataset"
	"github.com/sells-group/volcanoes/internal/fetcher"
	"github.com/sells-group/volcanoes/internal/resilience"
)

// FetchError is returned when a dataset could not be downloaded or the
// response was unusable.
type FetchError struct {
	Dataset    dataset.Dataset
	URL        string
	StatusCode int // 0 when no HTTP response was received
	Transient  bool
	Err        error
}

func newFetchError(ds dataset.Dataset, url string, err error) *FetchError {
	fe := &FetchError{
		Dataset:   ds,
		URL:       url,
		Transient: resilience.IsTransient(err),
		Err:       err,
	}
	var se *fetcher.StatusError
	if errors.As(err, &se) {
		fe.StatusCode = se.StatusCode
	}
	return fe
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s: %v", e.Dataset, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid request or client setup, such as
// asking for records with both epochs disabled.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// StaleCacheWarning is attached to a result that was served from the cache
// because a download failed.
type StaleCacheWarning struct {
	Dataset      dataset.Dataset
	DownloadedAt time.Time
	Cause        error
}

func (w *StaleCacheWarning) Error() string {
	return fmt.Sprintf("%s: download failed, using cached copy from %s: %v",
		w.Dataset, w.DownloadedAt.Format(time.RFC3339), w.Cause)
}

func (w *StaleCacheWarning) Unwrap() error { return w.Cause }
