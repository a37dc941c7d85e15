package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/core"
	"github.com/joseph-ayodele/plates-tracker/internal/imageproc"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	recognizeFlag := flag.Bool("recognize", false, "run the full recognizer instead of raw OCR")
	flag.Parse()
	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-recognize] <image>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	reader, closeReader, err := core.NewReader(ctx, cfg.OCR, 1, logger)
	if err != nil {
		logger.Error("ocr engine", "error", err)
		os.Exit(1)
	}
	defer closeReader()

	img, err := core.NewLoader(cfg.OCR, logger).Load(ctx, path)
	if err != nil {
		logger.Error("load image", "path", path, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	start := time.Now()

	if *recognizeFlag {
		validator, err := core.NewValidator(cfg.Pipeline)
		if err != nil {
			logger.Error("validator", "error", err)
			os.Exit(1)
		}
		res, err := core.NewRecognizer(cfg.Pipeline, reader, validator, logger).Recognize(ctx, img)
		if err != nil {
			logger.Error("recognition failed", "error", err)
			os.Exit(1)
		}
		logger.Info("recognition OK",
			"regions", res.Regions, "fallback", res.FallbackUsed,
			"plates", len(res.Records), "duration_ms", time.Since(start).Milliseconds())
		_ = enc.Encode(res.Records)
		return
	}

	obs, err := reader.Read(ctx, imageproc.Resize(img, cfg.Pipeline.MaxWidth))
	if err != nil {
		logger.Error("ocr failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}
	logger.Info("ocr OK", "observations", len(obs), "duration_ms", time.Since(start).Milliseconds())
	_ = enc.Encode(obs)
}
