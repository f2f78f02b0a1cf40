package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/volcanoes/internal/config"
	"github.com/sells-group/volcanoes/internal/gvp"
)

var (
	cfg *config.Config

	configPath string
	cacheDir   string
)

var rootCmd = &cobra.Command{
	Use:   "volcanoes",
	Short: "Smithsonian GVP volcano and eruption data with a local cache",
	Long: "Downloads the Global Volcanism Program volcano and eruption lists, caches them on disk, " +
		"and filters, summarizes, exports or serves them.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cacheDir != "" {
			c.Cache.Dir = cacheDir
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "cache directory (default ~/.volcanoes_cache)")
}

// newClient validates the loaded configuration for mode and builds a client.
func newClient(mode string) (*gvp.Client, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	opts, err := cfg.ClientOptions()
	if err != nil {
		return nil, err
	}
	return gvp.New(opts)
}

// reportWarnings prints fallback warnings and a count of skipped rows.
func reportWarnings(out io.Writer, warnings []error) {
	skipped := 0
	for _, w := range warnings {
		var stale *gvp.StaleCacheWarning
		if errors.As(w, &stale) {
			_, _ = fmt.Fprintf(out, "warning: %v\n", w)
			continue
		}
		skipped++
	}
	if skipped > 0 {
		_, _ = fmt.Fprintf(out, "warning: %d malformed rows skipped (run with log.level=debug for details)\n", skipped)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
