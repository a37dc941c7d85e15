package imageio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/plates-tracker/internal/ocr"
)

type ctxKey string

const (
	ctxKeyContentHash ctxKey = "imageio.content_hash_hex"
)

// WithContentHash stores the hex-encoded SHA256 so converted HEIC files can be cached.
func WithContentHash(ctx context.Context, hex string) context.Context {
	return context.WithValue(ctx, ctxKeyContentHash, hex)
}

func contentHashFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyContentHash).(string)
	return v, ok
}

// convertHEICtoPNG converts a HEIC/HEIF file to PNG.
// With cacheDir and hashHex set the PNG is kept at {cacheDir}/{hashHex}.png
// and reused; otherwise it lives in a temp dir removed by cleanup.
func convertHEICtoPNG(
	ctx context.Context,
	r ocr.Runner,
	logger *slog.Logger,
	converter string,
	in string,
	cacheDir string,
	hashHex string,
) (string, func(), error) {
	var cached string
	if cacheDir != "" && hashHex != "" {
		cached = filepath.Join(cacheDir, hashHex+".png")
		if st, err := os.Stat(cached); err == nil && !st.IsDir() {
			logger.Debug("using cached heic->png", "cache", cached)
			return cached, nil, nil
		}
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return "", nil, err
		}
	}

	tmpDir, err := os.MkdirTemp("", "pt-heic-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "image.png")

	var args []string
	switch converter {
	case "heif-convert", "magick":
		args = []string{in, out}
	case "sips":
		args = []string{"-s", "format", "png", in, "--out", out}
	default:
		return "", cleanup, fmt.Errorf("HEIC not supported: set HEIC_CONVERTER to one of: heif-convert | magick | sips")
	}
	if _, errb, err := r.Run(ctx, converter, logger, args...); err != nil {
		return "", cleanup, fmt.Errorf("%s failed: %w: %s", converter, err, string(errb))
	}
	if _, statErr := os.Stat(out); statErr != nil {
		return "", cleanup, fmt.Errorf("HEIC conversion produced no output: %v", statErr)
	}

	if cached == "" {
		return out, cleanup, nil
	}
	if err := persist(out, cached); err != nil {
		logger.Warn("failed to cache heic->png", "cache", cached, "error", err)
		return out, cleanup, nil
	}
	cleanup()
	logger.Debug("cached heic->png", "cache", cached)
	return cached, nil, nil
}

// persist moves src to dst, copying when rename crosses devices.
func persist(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if st, err := os.Stat(dst); err == nil && !st.IsDir() {
		return nil // another worker got there first
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
