package gvp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/volcanoes/internal/dataset"
	"github.com/sells-group/volcanoes/internal/fetcher"
)

func newTestSource(url string) *Source {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{UserAgent: "test", Timeout: 5 * time.Second, RateLimit: 100, Burst: 10})
	return NewSource(f, url, 5*time.Second)
}

func TestRepair(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"summit (< 100 m)", "summit (&lt; 100 m)"},
		{"a (< 1) b (< 2)", "a (&lt; 1) b (&lt; 2)"},
		{"x < y (<1)", "x < y (<1)"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(Repair([]byte(tt.in))), tt.in)
	}
}

func TestSource_URL(t *testing.T) {
	s := NewSource(nil, "", 0)
	u, err := s.URL(dataset.PleistoceneEruptions)
	require.NoError(t, err)
	assert.Contains(t, u, dataset.DefaultBaseURL+"?")
	assert.Contains(t, u, "typeName=GVP-VOTW%3ASmithsonian_VOTW_Pleistocene_Eruptions")
	assert.Equal(t, DefaultTimeout, s.timeout)

	_, err = s.URL(dataset.Dataset("bogus"))
	assert.Error(t, err)
}

func TestSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "WFS", q.Get("service"))
		assert.Equal(t, "1.0.0", q.Get("version"))
		assert.Equal(t, "GetFeature", q.Get("request"))
		assert.Equal(t, "GVP-VOTW:Smithsonian_VOTW_Holocene_Volcanoes", q.Get("typeName"))
		assert.Equal(t, "csv", q.Get("outputFormat"))
		w.Header().Set("Content-Type", "text/csv;charset=UTF-8")
		_, _ = w.Write([]byte("Volcano_Number,Volcano_Name,Geological_Summary\n1,A,summit (< 100 m)\n"))
	}))
	defer srv.Close()

	payload, err := newTestSource(srv.URL).Fetch(context.Background(), dataset.HoloceneVolcanoes)
	require.NoError(t, err)
	assert.Equal(t, "Volcano_Number,Volcano_Name,Geological_Summary\n1,A,summit (&lt; 100 m)\n", string(payload))
}

func TestSource_FetchInvalidResponses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"empty", 200, "", "empty response"},
		{"whitespace", 200, "  \n\n", "empty response"},
		{"exception report", 200, `<?xml version="1.0"?><ServiceExceptionReport><ServiceException code="InvalidParameterValue">Unknown typeName</ServiceException></ServiceExceptionReport>`, "service exception: InvalidParameterValue: Unknown typeName"},
		{"other xml", 200, `<html><body>maintenance</body></html>`, "unexpected XML response"},
		{"blank header", 200, ",,\n1,2,3\n", "no column names"},
		{"server error", 503, "down", "unexpected status 503"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestSource(srv.URL).Fetch(context.Background(), dataset.HoloceneEruptions)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, dataset.HoloceneEruptions, fe.Dataset)
			assert.Contains(t, fe.URL, srv.URL)
		})
	}
}

func TestSource_FetchErrorClassification(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()
	s := newTestSource(srv.URL)

	_, err := s.Fetch(context.Background(), dataset.HoloceneVolcanoes)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 503, fe.StatusCode)
	assert.True(t, fe.Transient)

	status.Store(http.StatusNotFound)
	_, err = s.Fetch(context.Background(), dataset.HoloceneVolcanoes)
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 404, fe.StatusCode)
	assert.False(t, fe.Transient)
}

func TestSource_FetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{RateLimit: 100})
	s := NewSource(f, srv.URL, 50*time.Millisecond)
	_, err := s.Fetch(context.Background(), dataset.HoloceneVolcanoes)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.StatusCode)
	assert.True(t, fe.Transient)
}

func TestSource_FetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestSource(url).Fetch(context.Background(), dataset.HoloceneVolcanoes)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.True(t, fe.Transient)
}
