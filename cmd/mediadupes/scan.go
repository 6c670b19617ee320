package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ivoronin/mediadupes/internal/cache"
	"github.com/ivoronin/mediadupes/internal/config"
	"github.com/ivoronin/mediadupes/internal/engine"
	"github.com/ivoronin/mediadupes/internal/report"
	"github.com/ivoronin/mediadupes/internal/types"
)

// scanOptions holds CLI flags for the scan command.
type scanOptions struct {
	configFile    string
	mode          string
	extensions    []string
	quickChunkStr string
	workers       int
	cacheFile     string
	csvFiles      string
	csvDirs       string
	noProgress    bool
}

// newScanCmd creates the scan subcommand.
func newScanCmd() *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Scan a directory tree for duplicate media files and folders",
		Long: `Scans a directory tree, groups byte-identical media files and reports
folders whose media content is equivalent. The scan is strictly read-only.

Directory equivalence modes:
  content     same multiset of file contents, layout ignored (default)
  structural  same relative layout and content

If <path> is a file, its parent directory is scanned.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "Path to YAML config file")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Directory equivalence mode: content or structural")
	cmd.Flags().StringSliceVar(&opts.extensions, "ext", nil, "Media extension allow-list (overrides defaults)")
	cmd.Flags().StringVar(&opts.quickChunkStr, "quick-chunk", "", "Quick fingerprint chunk size (e.g., 64KiB, 1M)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Number of parallel workers")
	cmd.Flags().StringVar(&opts.cacheFile, "cache-file", "", "Path to digest cache file (enables caching)")
	cmd.Flags().StringVar(&opts.csvFiles, "csv-files", "", "Write duplicate file groups to a CSV file")
	cmd.Flags().StringVar(&opts.csvDirs, "csv-dirs", "", "Write duplicate folder groups to a CSV file")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")

	return cmd
}

// buildConfig layers flags over the config file over the defaults.
func buildConfig(opts *scanOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return cfg, err
	}

	if opts.mode != "" {
		mode, err := types.ParseDirectoryMode(opts.mode)
		if err != nil {
			return cfg, fmt.Errorf("invalid --mode: %w", err)
		}
		cfg.DirectoryMode = mode
	}
	if len(opts.extensions) > 0 {
		cfg.Extensions = opts.extensions
	}
	if opts.quickChunkStr != "" {
		chunk, err := parseSize(opts.quickChunkStr)
		if err != nil {
			return cfg, fmt.Errorf("invalid --quick-chunk: %w", err)
		}
		cfg.QuickChunkBytes = chunk
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.cacheFile != "" {
		cfg.CacheFile = opts.cacheFile
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// runScan executes one scan and writes the reports.
func runScan(cmd *cobra.Command, path string, opts *scanOptions) error {
	cfg, err := buildConfig(opts)
	if err != nil {
		return err
	}

	digestCache, err := cache.Open(cfg.CacheFile)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() { _ = digestCache.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := engine.New(cfg, digestCache, !opts.noProgress).Scan(ctx, path)
	if err != nil {
		return err
	}

	report.WriteText(cmd.OutOrStdout(), res)

	if opts.csvFiles != "" {
		if err := writeCSV(opts.csvFiles, res, report.WriteFilesCSV); err != nil {
			return fmt.Errorf("write --csv-files: %w", err)
		}
	}
	if opts.csvDirs != "" {
		if err := writeCSV(opts.csvDirs, res, report.WriteDirsCSV); err != nil {
			return fmt.Errorf("write --csv-dirs: %w", err)
		}
	}

	if len(res.Notes) > 0 {
		return errPartial
	}
	return nil
}

// writeCSV exports one group table to a file.
func writeCSV(path string, res *types.ScanResult, write func(w io.Writer, res *types.ScanResult) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, res); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
