package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/core"
	"github.com/joseph-ayodele/plates-tracker/internal/ingest"
	"github.com/joseph-ayodele/plates-tracker/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	// Parse CLI flags
	var (
		input   = flag.String("input", "", "single image to process")
		dir     = flag.String("dir", "", "directory of images to process")
		outDir  = flag.String("out", "", "report directory (defaults to OUTPUT_DIR)")
		workers = flag.Int("workers", 0, "concurrent images (defaults to BATCH_WORKERS)")
		inmem   = flag.Bool("inmem", false, "use in-memory SQLite database")
		nostore = flag.Bool("nostore", false, "do not record runs")
		force   = flag.Bool("force", false, "reprocess images whose content was already processed")
		xlsx    = flag.String("xlsx", "", "write the batch workbook to this path")
		upload  = flag.Bool("upload", false, "upload artifacts to MinIO when MINIO_ENDPOINT is set")
		watch   = flag.Bool("watch", false, "keep watching -dir for new images after the batch")
	)
	flag.Parse()

	// Validate required flags
	if (*input == "") == (*dir == "") {
		printError("Error: exactly one of --input or --dir is required\n")
		os.Exit(1)
	}
	if *watch && *dir == "" {
		printError("Error: --watch needs --dir\n")
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := core.Build(ctx, cfg, core.Options{InMemory: *inmem, NoStore: *nostore, Upload: *upload}, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	paths := []string{*input}
	if *dir != "" {
		results, stats, err := ingest.ScanDirectory(ctx, *dir, ingest.ScanOptions{SkipHidden: true})
		if err != nil {
			logger.Error("failed to scan directory", "dir", *dir, "error", err)
			os.Exit(1)
		}
		logger.Info("directory scanned",
			"dir", *dir,
			"scanned", stats.Scanned,
			"matched", stats.Matched,
			"succeeded", stats.Succeeded,
			"failed", stats.Failed)
		paths = ingest.Paths(results)
	}

	batchCfg := pipeline.BatchConfig{
		Workers:      cfg.Batch.Workers,
		QueueSize:    cfg.Batch.QueueSize,
		ImageTimeout: cfg.Batch.ImageTimeout,
		Force:        *force,
	}
	outcomes, summary := svc.Processor.RunBatch(ctx, paths, batchCfg)
	if err := pipeline.WriteSummary(os.Stdout, summary); err != nil {
		printError("Error: writing summary: %v\n", err)
	}

	if *xlsx != "" {
		if err := pipeline.WriteWorkbook(*xlsx, outcomes, logger); err != nil {
			logger.Error("failed to write workbook", "path", *xlsx, "error", err)
			os.Exit(1)
		}
	}

	if *watch {
		watchDir(ctx, svc, *dir, *force, logger)
	}
}

// watchDir processes images as they appear under dir until interrupted.
func watchDir(ctx context.Context, svc *core.Services, dir string, force bool, logger *slog.Logger) {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:    []string{dir},
		Debounce: 500 * time.Millisecond,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to start watcher", "dir", dir, "error", err)
		os.Exit(1)
	}
	logger.Info("watching for new images", "dir", dir)
	for {
		select {
		case path, ok := <-events:
			if !ok {
				return
			}
			out, err := svc.Processor.ProcessFile(ctx, path, force)
			if err != nil {
				logger.Error("watch.process_failed", "file", filepath.Base(path), "error", err)
				continue
			}
			logger.Info("watch.processed", "file", filepath.Base(path), "status", out.Status, "plates", len(out.Records))
		case err, ok := <-errs:
			if !ok {
				return
			}
			logger.Warn("watcher error", "error", err)
		case <-ctx.Done():
			return
		}
	}
}
