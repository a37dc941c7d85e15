// Package ocr adapts OCR engines to a single line-level Reader contract.
package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

// Engine names accepted by New.
const (
	EngineTesseract   = "tesseract"
	EngineGosseract   = "gosseract"
	EngineRekognition = "rekognition"
)

// Reader returns the text lines found in img. Polygons are 4-point quads
// (TL, TR, BR, BL) in img's pixel space and confidences lie in [0,1].
type Reader interface {
	Read(ctx context.Context, img image.Image) ([]entity.Observation, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(ctx context.Context, img image.Image) ([]entity.Observation, error)

func (f ReaderFunc) Read(ctx context.Context, img image.Image) ([]entity.Observation, error) {
	return f(ctx, img)
}

type Config struct {
	Engine      string
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "eng"
	PSM         int    // 7 treats the image as a single text line
	TessdataDir string
	Whitelist   string
	Timeout     time.Duration // per Read; 0 disables
	AWSRegion   string
}

// ConfigFrom maps the application config onto the OCR config.
func ConfigFrom(c common.OCRConfig) Config {
	return Config{
		Engine:      c.Engine,
		Tesseract:   c.Tesseract,
		Lang:        c.Lang,
		PSM:         c.PSM,
		TessdataDir: c.TessdataDir,
		Whitelist:   c.Whitelist,
		Timeout:     c.Timeout,
		AWSRegion:   c.AWSRegion,
	}
}

func (c Config) withDefaults() Config {
	if c.Engine == "" {
		c.Engine = EngineTesseract
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Lang == "" {
		c.Lang = "eng"
	}
	return c
}

// New builds the configured engine, wrapped with the per-call timeout.
// A construction error means the process cannot recognize anything and
// should stop.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	var (
		r   Reader
		err error
	)
	switch cfg.Engine {
	case EngineTesseract:
		r, err = newTesseractFromPath(cfg, ExecRunner{}, logger)
	case EngineGosseract:
		r, err = NewGosseractReader(cfg, logger)
	case EngineRekognition:
		r, err = NewRekognitionReaderFromEnv(ctx, cfg, logger)
	default:
		err = fmt.Errorf("unknown engine %q", cfg.Engine)
	}
	if err != nil {
		return nil, common.NewAppError(common.CodeOCRConfig, "cannot construct OCR engine "+cfg.Engine, fmt.Errorf("%w: %w", common.ErrOCRConfig, err))
	}

	logger.Info("ocr engine ready", "engine", cfg.Engine, "timeout", cfg.Timeout.String())
	if cfg.Timeout > 0 {
		r = WithDeadline(r, cfg.Timeout)
	}
	return r, nil
}

func newTesseractFromPath(cfg Config, runner ExecRunner, logger *slog.Logger) (Reader, error) {
	if _, err := runner.LookPath(cfg.Tesseract); err != nil {
		return nil, fmt.Errorf("tesseract binary: %w", err)
	}
	return NewTesseractReader(cfg, runner, logger), nil
}
