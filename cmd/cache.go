package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/volcanoes/internal/cache"
	"github.com/sells-group/volcanoes/internal/dataset"
	"github.com/sells-group/volcanoes/internal/gvp"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the dataset cache",
}

var cacheInfoOutput string

var cacheInfoCmd = &cobra.Command{
	Use:       "info [datasets...]",
	Short:     "Show what is cached",
	ValidArgs: dataset.AllNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasets, err := dataset.ParseList(args)
		if err != nil {
			return err
		}
		client, err := newClient("fetch")
		if err != nil {
			return err
		}
		info, err := client.CacheInfo(datasets...)
		if err != nil {
			return err
		}
		latest, err := client.Store().Latest()
		if err != nil {
			return err
		}
		return writeCacheInfo(cmd.OutOrStdout(), info, latest, cacheInfoOutput, time.Now())
	},
}

var cacheClearCmd = &cobra.Command{
	Use:       "clear [datasets...]",
	Short:     "Delete cached datasets (all when none are named)",
	ValidArgs: dataset.AllNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasets, err := dataset.ParseList(args)
		if err != nil {
			return err
		}
		client, err := newClient("fetch")
		if err != nil {
			return err
		}
		if err := client.ClearCache(datasets...); err != nil {
			return err
		}
		if len(datasets) == 0 {
			datasets = dataset.All()
		}
		for _, ds := range datasets {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", ds)
		}
		return nil
	},
}

var cacheRefreshCmd = &cobra.Command{
	Use:       "refresh [datasets...]",
	Short:     "Re-download datasets (all when none are named)",
	ValidArgs: dataset.AllNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasets, err := dataset.ParseList(args)
		if err != nil {
			return err
		}
		if len(datasets) == 0 {
			datasets = dataset.All()
		}
		client, err := newClient("fetch")
		if err != nil {
			return err
		}
		results, err := refreshAll(cmd.Context(), client, datasets, cfg.GVP.Concurrency)
		writeRefreshResults(cmd.OutOrStdout(), results)
		return err
	},
}

func init() {
	cacheInfoCmd.Flags().StringVarP(&cacheInfoOutput, "output", "o", "table", "output format: table, json, yaml")
	cacheCmd.AddCommand(cacheInfoCmd, cacheClearCmd, cacheRefreshCmd)
	rootCmd.AddCommand(cacheCmd)
}

// downloader is the part of *gvp.Client used by refreshAll.
type downloader interface {
	Download(ctx context.Context, ds dataset.Dataset, force bool) (*gvp.Result, error)
}

type refreshResult struct {
	Dataset dataset.Dataset
	Result  *gvp.Result
	Err     error
}

// refreshAll force-downloads datasets with at most limit in flight. A failed
// dataset does not stop the others; the first failure is returned.
func refreshAll(ctx context.Context, d downloader, datasets []dataset.Dataset, limit int) ([]refreshResult, error) {
	log := zap.L().With(zap.String("command", "cache.refresh"))
	results := make([]refreshResult, len(datasets))

	var (
		mu       sync.Mutex
		firstErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for i, ds := range datasets {
		g.Go(func() error {
			res, err := d.Download(gctx, ds, true)
			results[i] = refreshResult{Dataset: ds, Result: res, Err: err}
			if err != nil {
				log.Warn("refresh failed", zap.String("dataset", string(ds)), zap.Error(err))
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if firstErr != nil {
		return results, eris.Wrap(firstErr, "cache refresh")
	}
	return results, nil
}

func writeRefreshResults(out io.Writer, results []refreshResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATASET\tSOURCE\tRECORDS\tRESULT")
	for _, r := range results {
		switch {
		case r.Err != nil:
			_, _ = fmt.Fprintf(w, "%s\t-\t-\tfailed: %v\n", r.Dataset, r.Err)
		case r.Result != nil:
			note := "ok"
			if len(r.Result.Warnings) > 0 {
				note = fmt.Sprintf("ok (%d warnings)", len(r.Result.Warnings))
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Dataset, r.Result.Origin, r.Result.Collection.Len(), note)
		}
	}
	_ = w.Flush()
}

// writeCacheInfo renders cache status as a table, JSON or YAML. The table
// ends with the most recent download across the whole cache, when there is one.
func writeCacheInfo(out io.Writer, info []cache.Status, latest *cache.Metadata, format string, now time.Time) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close() //nolint:errcheck
		return enc.Encode(info)
	case "table":
	default:
		return fmt.Errorf("unknown output %q (want table, json or yaml)", format)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATASET\tCACHED\tDOWNLOADED\tAGE\tSIZE\tRECORDS\tPATH")
	for _, st := range info {
		if st.Meta == nil {
			_, _ = fmt.Fprintf(w, "%s\tno\t-\t-\t-\t-\t%s\n", st.Dataset, st.Path)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\tyes\t%s\t%s\t%s\t%d\t%s\n",
			st.Dataset,
			st.Meta.DownloadedAt.Local().Format("2006-01-02 15:04"),
			st.Meta.Age(now).Round(time.Minute),
			humanBytes(st.Meta.Bytes),
			st.Meta.Records,
			st.Path,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if latest != nil {
		_, _ = fmt.Fprintf(out, "\nLatest download: %s at %s (%s ago)\n",
			latest.Dataset,
			latest.DownloadedAt.Local().Format("2006-01-02 15:04"),
			latest.Age(now).Round(time.Minute),
		)
	}
	return nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
