// Package core builds the recognition services from configuration, so the
// commands share one wiring.
package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/detect"
	"github.com/joseph-ayodele/plates-tracker/internal/imageio"
	"github.com/joseph-ayodele/plates-tracker/internal/imageproc"
	"github.com/joseph-ayodele/plates-tracker/internal/ocr"
	"github.com/joseph-ayodele/plates-tracker/internal/pipeline"
	"github.com/joseph-ayodele/plates-tracker/internal/plate"
	"github.com/joseph-ayodele/plates-tracker/internal/recognize"
	"github.com/joseph-ayodele/plates-tracker/internal/report"
	repo "github.com/joseph-ayodele/plates-tracker/internal/repository"
	"github.com/joseph-ayodele/plates-tracker/internal/server"
	"github.com/joseph-ayodele/plates-tracker/internal/storage"
)

type Options struct {
	InMemory bool       // private in-memory SQLite instead of the configured store
	NoStore  bool       // no persistence; runs are neither recorded nor deduplicated
	Upload   bool       // upload artifacts when MINIO_ENDPOINT is set
	Reader   ocr.Reader // prebuilt reader; skips engine construction
}

// Services is everything a command needs to recognize and report.
type Services struct {
	Config     *common.Config
	DB         *repo.DB
	Runs       repo.RunRepository
	Plates     repo.PlateRepository
	Reader     ocr.Reader
	Loader     *imageio.Loader
	Recognizer *recognize.Recognizer
	Writer     *report.Writer
	Uploader   *storage.Uploader
	Processor  *pipeline.Processor

	logger  *slog.Logger
	closers []func()
}

// Build wires the configured services. An OCR engine that cannot be
// constructed is returned as an OCR_CONFIG error and is fatal for callers.
func Build(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Services{Config: cfg, logger: logger}

	reader := opts.Reader
	if reader == nil {
		r, closeFn, err := NewReader(ctx, cfg.OCR, cfg.Batch.Workers, logger)
		if err != nil {
			return nil, err
		}
		reader = r
		s.closers = append(s.closers, closeFn)
	}
	s.Reader = reader

	validator, err := NewValidator(cfg.Pipeline)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Recognizer = NewRecognizer(cfg.Pipeline, reader, validator, logger)
	s.Loader = NewLoader(cfg.OCR, logger)

	if !opts.NoStore {
		db, err := server.ConnectDB(ctx, cfg.Database, opts.InMemory, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.DB = db
		s.closers = append(s.closers, func() { server.CloseDB(db, logger) })
		s.Runs = repo.NewRunRepository(db, logger)
		s.Plates = repo.NewPlateRepository(db, logger)
	}

	var uploader report.Uploader
	if opts.Upload && cfg.Storage.Endpoint != "" {
		u, err := storage.NewMinIOUploader(ctx, cfg.Storage, logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("storage: %w", err)
		}
		s.Uploader = u
		uploader = u
	}

	w, err := report.NewWriter(cfg.Output.Dir, uploader, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Writer = w

	s.Processor = pipeline.NewProcessor(pipeline.Deps{
		Loader:     s.Loader,
		Recognizer: s.Recognizer,
		Writer:     s.Writer,
		Runs:       s.Runs,
		Plates:     s.Plates,
		Engine:     cfg.OCR.Engine,
	}, logger)
	logger.Debug("services ready",
		"ocr_engine", cfg.OCR.Engine,
		"vision_backend", detect.Backend,
		"imageproc_backend", imageproc.Backend,
		"store", s.DB != nil,
	)
	return s, nil
}

// Close releases everything Build opened, in reverse order.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// NewReader constructs the configured OCR engine. Gosseract handles are not
// safe to share, so that engine gets one reader per worker.
func NewReader(ctx context.Context, cfg common.OCRConfig, workers int, logger *slog.Logger) (ocr.Reader, func(), error) {
	oc := ocr.ConfigFrom(cfg)
	if oc.Engine != ocr.EngineGosseract || workers <= 1 {
		r, err := ocr.New(ctx, oc, logger)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { closeReader(r, logger) }, nil
	}
	pool, err := ocr.NewPool(workers, func() (ocr.Reader, error) {
		return ocr.New(ctx, oc, logger)
	})
	if err != nil {
		return nil, nil, err
	}
	return pool, func() { closeReader(pool, logger) }, nil
}

func closeReader(r ocr.Reader, logger *slog.Logger) {
	if c, ok := r.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			logger.Warn("ocr reader close failed", "error", err)
		}
	}
}

// NewValidator builds the grammar registry, appending PLATE_GRAMMAR_FILE
// entries after the built-ins.
func NewValidator(cfg common.PipelineConfig) (*plate.Validator, error) {
	opts := []plate.Option{plate.WithStrict(cfg.Strict)}
	if cfg.GrammarFile != "" {
		extra, err := plate.LoadGrammars(cfg.GrammarFile)
		if err != nil {
			return nil, common.NewAppError(common.CodeConfig, "cannot load grammar file "+cfg.GrammarFile, err)
		}
		opts = append(opts, plate.WithGrammars(extra...))
	}
	return plate.NewValidator(opts...), nil
}

func NewRecognizer(cfg common.PipelineConfig, reader ocr.Reader, validator recognize.Classifier, logger *slog.Logger) *recognize.Recognizer {
	finder := detect.NewDetector(detect.Config{
		MaxWidth:   cfg.MaxWidth,
		Confidence: cfg.RegionConfidence,
	}, logger)
	return recognize.NewRecognizer(recognize.Config{
		MaxWidth:      cfg.MaxWidth,
		MinConfidence: cfg.MinConfidence,
		Dedup:         cfg.Dedup,
	}, finder, reader, validator, logger)
}

func NewLoader(cfg common.OCRConfig, logger *slog.Logger) *imageio.Loader {
	return imageio.NewLoader(imageio.Config{
		HeicConverter:    cfg.HeicConverter,
		ArtifactCacheDir: cfg.ArtifactCacheDir,
	}, nil, logger)
}
