package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/ingest"
	"github.com/joseph-ayodele/plates-tracker/internal/queue"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		dir     = flag.String("dir", "", "enqueue every image under this directory")
		force   = flag.Bool("force", false, "reprocess content that was already processed")
		retries = flag.Int("retries", 2, "attempts after the first failure")
		inline  = flag.Bool("inline", false, "send image bytes instead of paths")
	)
	flag.Parse()

	paths := flag.Args()
	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if cfg.Queue.RedisURL == "" {
		logger.Error("QUEUE_REDIS_URL required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if *dir != "" {
		results, _, err := ingest.ScanDirectory(ctx, *dir, ingest.ScanOptions{SkipHidden: true})
		if err != nil {
			logger.Error("scan directory", "dir", *dir, "error", err)
			os.Exit(1)
		}
		paths = append(paths, ingest.Paths(results)...)
	}
	if len(paths) == 0 {
		logger.Error("usage", "cmd", "plates-enqueue [-dir DIR] [-inline] [image ...]")
		os.Exit(2)
	}

	rdb, err := queue.Connect(ctx, cfg.Queue.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	producer := queue.NewProducer(rdb, cfg.Queue.Name)

	failed := 0
	for _, path := range paths {
		job := queue.Job{Filename: filepath.Base(path), Force: *force, MaxRetries: *retries}
		if *inline {
			data, err := os.ReadFile(path)
			if err != nil {
				logger.Error("read image", "path", path, "error", err)
				failed++
				continue
			}
			job.Image = data
		} else {
			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}
			job.Path = abs
		}
		id, err := producer.Enqueue(ctx, job)
		if err != nil {
			logger.Error("enqueue", "path", path, "error", err)
			failed++
			continue
		}
		fmt.Printf("%s\t%s\n", id, path)
	}
	logger.Info("enqueued", "queue", cfg.Queue.Name, "jobs", len(paths)-failed, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}
