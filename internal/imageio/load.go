// Package imageio loads source images from disk or memory.
package imageio

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/plates-tracker/constants"
	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/ocr"
)

type Config struct {
	HeicConverter    string // heif-convert | magick | sips
	ArtifactCacheDir string
}

// Loader decodes jpg, png, bmp, tiff and gif directly and converts HEIC/HEIF
// through an external tool first.
type Loader struct {
	cfg    Config
	runner ocr.Runner
	logger *slog.Logger
}

func NewLoader(cfg Config, runner ocr.Runner, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ocr.ExecRunner{}
	}
	if cfg.HeicConverter == "" {
		cfg.HeicConverter = "magick"
	}
	return &Loader{cfg: cfg, runner: runner, logger: logger}
}

// Load decodes the image at path. Every failure is an image load error.
func (l *Loader) Load(ctx context.Context, path string) (image.Image, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, common.ImageLoadError(path, err)
	}
	if st.IsDir() {
		return nil, common.ImageLoadError(path, fmt.Errorf("is a directory"))
	}

	src := path
	if constants.IsHEICExt(filepath.Ext(path)) {
		hashHex, _ := contentHashFromCtx(ctx)
		out, cleanup, err := convertHEICtoPNG(ctx, l.runner, l.logger, l.cfg.HeicConverter, path, l.cfg.ArtifactCacheDir, hashHex)
		if cleanup != nil {
			defer cleanup()
		}
		if err != nil {
			l.logger.Error("heic conversion failed", "path", path, "error", err)
			return nil, common.ImageLoadError(path, err)
		}
		src = out
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, common.ImageLoadError(path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			l.logger.Warn("failed to close image file", "path", src, "error", cerr)
		}
	}()

	img, err := Decode(f)
	if err != nil {
		return nil, common.ImageLoadError(path, err)
	}
	l.logger.Debug("image loaded", "path", path, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return img, nil
}

// Decode reads an in-memory image, applying EXIF orientation.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode: empty image")
	}
	return img, nil
}

// DecodeBytes is Decode over a buffer, reporting failures as image load errors.
func DecodeBytes(name string, data []byte) (image.Image, error) {
	img, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, common.ImageLoadError(name, err)
	}
	return img, nil
}
