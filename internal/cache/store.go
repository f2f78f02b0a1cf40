// Package cache persists downloaded dataset payloads on disk next to a JSON
// metadata sidecar. An entry exists only when both files are present and the
// sidecar decodes.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/volcanoes/internal/dataset"
	"github.com/sells-group/volcanoes/internal/fetcher"
)

const (
	payloadExt = ".csv"
	metaExt    = ".meta.json"
	backupExt  = ".bak"

	// DefaultDirName is the cache directory created under the user's home.
	DefaultDirName = ".volcanoes_cache"
)

// Metadata describes one cached download.
type Metadata struct {
	Dataset      dataset.Dataset `json:"dataset" yaml:"dataset"`
	DownloadedAt time.Time       `json:"downloaded_at" yaml:"downloaded_at"`
	SourceURL    string          `json:"source_url" yaml:"source_url"`
	Bytes        int64           `json:"bytes" yaml:"bytes"`
	Records      int             `json:"records" yaml:"records"`
	FetchID      string          `json:"fetch_id" yaml:"fetch_id"`

	// Path is the payload location. It is derived, not stored.
	Path string `json:"-" yaml:"path"`
}

// Age returns how long ago the payload was downloaded.
func (m *Metadata) Age(now time.Time) time.Duration {
	return now.Sub(m.DownloadedAt)
}

// Status is the cache state of one dataset.
type Status struct {
	Dataset dataset.Dataset `json:"dataset" yaml:"dataset"`
	Cached  bool            `json:"cached" yaml:"cached"`
	Path    string          `json:"path" yaml:"path"`
	Meta    *Metadata       `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock used to stamp downloads.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is a directory of cached payloads keyed by dataset.
type Store struct {
	root   string
	now    func() time.Time
	rename func(oldpath, newpath string) error
}

// DefaultDir returns $HOME/.volcanoes_cache.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", eris.Wrap(err, "cache: resolve home directory")
	}
	return filepath.Join(home, DefaultDirName), nil
}

// New opens a store rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		var err error
		if dir, err = DefaultDir(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &Error{Op: "init", Path: dir, Err: err}
	}
	s := &Store{
		root:   dir,
		now:    time.Now,
		rename: os.Rename,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Root returns the cache directory.
func (s *Store) Root() string { return s.root }

// PayloadPath returns where the dataset's payload is stored.
func (s *Store) PayloadPath(ds dataset.Dataset) string {
	return filepath.Join(s.root, string(ds)+payloadExt)
}

// MetaPath returns where the dataset's metadata sidecar is stored.
func (s *Store) MetaPath(ds dataset.Dataset) string {
	return filepath.Join(s.root, string(ds)+metaExt)
}

// Has reports whether a complete entry exists for ds.
func (s *Store) Has(ds dataset.Dataset) bool {
	meta, err := s.Info(ds)
	return err == nil && meta != nil
}

// Info returns the metadata for ds, or (nil, nil) when ds is not cached.
// A payload without a sidecar counts as not cached; a sidecar that does not
// decode is an *Error so the entry is never overwritten unnoticed.
func (s *Store) Info(ds dataset.Dataset) (*Metadata, error) {
	if !ds.Valid() {
		return nil, &Error{Op: "info", Dataset: ds, Err: eris.Errorf("unknown dataset %q", ds)}
	}

	metaPath := s.MetaPath(ds)
	raw, err := os.ReadFile(metaPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Op: "info", Dataset: ds, Path: metaPath, Err: err}
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, &Error{Op: "info", Dataset: ds, Path: metaPath, Err: eris.Wrap(err, "decode metadata")}
	}
	if meta.Dataset != ds {
		return nil, &Error{Op: "info", Dataset: ds, Path: metaPath, Err: eris.Errorf("metadata is for dataset %q", meta.Dataset)}
	}

	payloadPath := s.PayloadPath(ds)
	if _, err := os.Stat(payloadPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &Error{Op: "info", Dataset: ds, Path: payloadPath, Err: err}
	}
	meta.Path = payloadPath
	return &meta, nil
}

// Get returns the cached payload and its metadata, or (nil, nil, nil) when ds
// is not cached.
func (s *Store) Get(ds dataset.Dataset) ([]byte, *Metadata, error) {
	meta, err := s.Info(ds)
	if err != nil || meta == nil {
		return nil, nil, err
	}
	payload, err := os.ReadFile(meta.Path)
	if errors.Is(err, fs.ErrNotExist) {
		// Cleared between the two reads.
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, &Error{Op: "get", Dataset: ds, Path: meta.Path, Err: err}
	}
	return payload, meta, nil
}

// InfoAll returns the status of every dataset in enumeration order.
func (s *Store) InfoAll() ([]Status, error) {
	out := make([]Status, 0, len(dataset.All()))
	for _, ds := range dataset.All() {
		meta, err := s.Info(ds)
		if err != nil {
			return nil, err
		}
		out = append(out, Status{
			Dataset: ds,
			Cached:  meta != nil,
			Path:    s.PayloadPath(ds),
			Meta:    meta,
		})
	}
	return out, nil
}

// Latest returns the metadata of the most recently downloaded dataset, or nil
// when nothing is cached. Ties go to the dataset that comes first in
// enumeration order.
func (s *Store) Latest() (*Metadata, error) {
	var latest *Metadata
	for _, ds := range dataset.All() {
		meta, err := s.Info(ds)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			continue
		}
		if latest == nil || meta.DownloadedAt.After(latest.DownloadedAt) {
			latest = meta
		}
	}
	return latest, nil
}

// Put stores payload as the entry for ds, replacing any previous entry.
// The payload and sidecar are written to temp files and renamed into place;
// if either step fails the previous entry is left as it was.
func (s *Store) Put(ds dataset.Dataset, payload []byte, source string) (*Metadata, error) {
	if !ds.Valid() {
		return nil, &Error{Op: "put", Dataset: ds, Err: eris.Errorf("unknown dataset %q", ds)}
	}

	meta := &Metadata{
		Dataset:      ds,
		DownloadedAt: s.now().UTC(),
		SourceURL:    source,
		Bytes:        int64(len(payload)),
		Records:      CountRows(payload),
		FetchID:      uuid.NewString(),
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, &Error{Op: "put", Dataset: ds, Err: eris.Wrap(err, "marshal metadata")}
	}

	payloadPath, metaPath := s.PayloadPath(ds), s.MetaPath(ds)

	tmpPayload, err := writeTemp(payloadPath, payload)
	if err != nil {
		return nil, &Error{Op: "put", Dataset: ds, Path: payloadPath, Err: err}
	}
	defer removeQuiet(tmpPayload)

	tmpMeta, err := writeTemp(metaPath, metaJSON)
	if err != nil {
		return nil, &Error{Op: "put", Dataset: ds, Path: metaPath, Err: err}
	}
	defer removeQuiet(tmpMeta)

	backup, err := backupFile(payloadPath)
	if err != nil {
		return nil, &Error{Op: "put", Dataset: ds, Path: payloadPath, Err: err}
	}
	if backup != "" {
		defer removeQuiet(backup)
	}

	if err := s.rename(tmpPayload, payloadPath); err != nil {
		return nil, &Error{Op: "put", Dataset: ds, Path: payloadPath, Err: eris.Wrap(err, "commit payload")}
	}
	if err := s.rename(tmpMeta, metaPath); err != nil {
		restore(backup, payloadPath)
		return nil, &Error{Op: "put", Dataset: ds, Path: metaPath, Err: eris.Wrap(err, "commit metadata")}
	}

	meta.Path = payloadPath
	zap.L().Info("cache: stored dataset",
		zap.String("dataset", string(ds)),
		zap.Int64("bytes", meta.Bytes),
		zap.Int("records", meta.Records),
		zap.String("fetch_id", meta.FetchID),
	)
	return meta, nil
}

// Clear removes the entries for the given datasets, or all datasets when none
// are given. Clearing a dataset that is not cached is a no-op.
func (s *Store) Clear(datasets ...dataset.Dataset) error {
	if len(datasets) == 0 {
		datasets = dataset.All()
	}
	for _, ds := range datasets {
		if !ds.Valid() {
			return &Error{Op: "clear", Dataset: ds, Err: eris.Errorf("unknown dataset %q", ds)}
		}
		// Sidecar first so a partial clear never leaves a readable entry.
		for _, p := range []string{s.MetaPath(ds), s.PayloadPath(ds), s.PayloadPath(ds) + backupExt} {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return &Error{Op: "clear", Dataset: ds, Path: p, Err: err}
			}
		}
		zap.L().Debug("cache: cleared dataset", zap.String("dataset", string(ds)))
	}
	return nil
}

// CountRows returns the number of CSV data rows in payload, header excluded.
func CountRows(payload []byte) int {
	rowCh, errCh := fetcher.StreamCSV(context.Background(), bytes.NewReader(payload), fetcher.CSVOptions{LazyQuotes: true})
	n := 0
	for range rowCh {
		n++
	}
	<-errCh
	if n == 0 {
		return 0
	}
	return n - 1
}

// writeTemp writes data to a synced temp file beside path and returns its name.
func writeTemp(path string, data []byte) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return "", eris.Wrap(err, "create temp file")
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		removeQuiet(name)
		return "", eris.Wrap(err, "write temp file")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		removeQuiet(name)
		return "", eris.Wrap(err, "sync temp file")
	}
	if err := f.Close(); err != nil {
		removeQuiet(name)
		return "", eris.Wrap(err, "close temp file")
	}
	return name, nil
}

// backupFile hard-links path to path.bak so a failed commit can be undone.
// It returns "" when path does not exist.
func backupFile(path string) (string, error) {
	backup := path + backupExt
	removeQuiet(backup)
	err := os.Link(path, backup)
	switch {
	case err == nil:
		return backup, nil
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	}
	// Filesystems without hard links get a copy.
	data, rerr := os.ReadFile(path)
	if rerr != nil {
		if errors.Is(rerr, fs.ErrNotExist) {
			return "", nil
		}
		return "", eris.Wrap(rerr, "read payload for backup")
	}
	if werr := os.WriteFile(backup, data, 0o644); werr != nil {
		return "", eris.Wrap(werr, "write payload backup")
	}
	return backup, nil
}

// restore puts the backed-up payload back, or removes the orphaned payload
// when there was no previous entry.
func restore(backup, path string) {
	var err error
	if backup == "" {
		err = os.Remove(path)
	} else {
		err = os.Rename(backup, path)
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		zap.L().Error("cache: failed to roll back payload", zap.String("path", path), zap.Error(err))
	}
}

func removeQuiet(path string) {
	_ = os.Remove(path)
}
