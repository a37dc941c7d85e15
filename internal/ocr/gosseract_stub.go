//go:build !gosseract

package ocr

import (
	"errors"
	"log/slog"
)

// NewGosseractReader is only available when built with -tags gosseract,
// which needs libtesseract headers.
func NewGosseractReader(_ Config, _ *slog.Logger) (Reader, error) {
	return nil, errors.New("built without gosseract support (rebuild with -tags gosseract)")
}
