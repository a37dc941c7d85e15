package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"image load", ImageLoadError("a.png", errors.New("bad header")), http.StatusUnprocessableEntity},
		{"invalid input", fmt.Errorf("wrapped: %w", ErrInvalidInput), http.StatusUnprocessableEntity},
		{"validation", NewValidator().Field("text", "", Required).Error(), http.StatusUnprocessableEntity},
		{"not found", NewAppError(CodeNotFound, "run x", ErrNotFound), http.StatusNotFound},
		{"ocr failure", OCRFailure("tesseract", context.DeadlineExceeded), http.StatusBadGateway},
		{"database", DatabaseError("insert", errors.New("disk full")), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorHelpersKeepCause(t *testing.T) {
	cause := errors.New("no such file")
	err := ImageLoadError("missing.jpg", cause)
	if !IsImageLoad(err) || !errors.Is(err, cause) {
		t.Fatalf("ImageLoadError must match ErrImageLoad and its cause: %v", err)
	}
	var app *AppError
	if !errors.As(err, &app) || app.Code != CodeImageLoad {
		t.Fatalf("want AppError with %s, got %#v", CodeImageLoad, err)
	}
	if !strings.Contains(err.Error(), "missing.jpg") {
		t.Fatalf("message should name the file: %q", err.Error())
	}
	if IsImageLoad(OCRFailure("x", cause)) {
		t.Fatal("an OCR failure is not an image load error")
	}
	if !errors.Is(DatabaseError("ping", cause), ErrDatabase) {
		t.Fatal("DatabaseError must match ErrDatabase")
	}
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("text", "AB", Required, LengthBetween(6, 12)).
		Field("confidence", 1.5, FloatBetween(0, 1)).
		Field("format", "FR", Required)
	if !v.HasErrors() || len(v.Errors()) != 2 {
		t.Fatalf("want 2 errors, got %v", v.Errors())
	}
	if !IsValidation(v.Error()) {
		t.Fatal("Validator.Error must match ErrValidation")
	}
	if !strings.Contains(v.ErrorMessage(), "confidence") {
		t.Fatalf("message should name the field: %q", v.ErrorMessage())
	}
	if err := NewValidator().Field("text", "AB-234-CD", Required).Error(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func newCaptureLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLoggerFromContext(t *testing.T) {
	t.Run("fallback is tagged with ids", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := WithRunID(WithRequestID(context.Background(), "req-1"), "run-9")
		LoggerFromContext(ctx, newCaptureLogger(&buf)).Info("hello")
		out := buf.String()
		if !strings.Contains(out, "request_id=req-1") || !strings.Contains(out, "run_id=run-9") {
			t.Fatalf("missing ids in %q", out)
		}
	})

	t.Run("stored logger is returned unchanged", func(t *testing.T) {
		var buf bytes.Buffer
		stored := newCaptureLogger(&buf).With("request_id", "req-2")
		ctx := WithLogger(WithRequestID(context.Background(), "req-2"), stored)
		LoggerFromContext(ctx, nil).Info("hello")
		if n := strings.Count(buf.String(), "request_id="); n != 1 {
			t.Fatalf("request_id logged %d times in %q", n, buf.String())
		}
	})

	t.Run("nil fallback uses default", func(t *testing.T) {
		if LoggerFromContext(context.Background(), nil) == nil {
			t.Fatal("want a logger")
		}
	})
}

func TestLoadConfig_EnvOverlay(t *testing.T) {
	chdir(t, t.TempDir()) // no .env here

	t.Setenv("OCR_ENGINE", "rekognition")
	t.Setenv("PLATE_STRICT", "true")
	t.Setenv("PLATE_MIN_CONFIDENCE", "0.4")
	t.Setenv("OCR_TIMEOUT", "5s")
	t.Setenv("DB_MAX_CONNS", "7")
	t.Setenv("BATCH_WORKERS", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.OCR.Engine != "rekognition" || !cfg.Pipeline.Strict || cfg.Pipeline.MinConfidence != 0.4 {
		t.Fatalf("env not applied: %+v %+v", cfg.OCR, cfg.Pipeline)
	}
	if cfg.OCR.Timeout != 5*time.Second || cfg.Database.MaxConns != 7 {
		t.Fatalf("typed env not applied: timeout=%s max_conns=%d", cfg.OCR.Timeout, cfg.Database.MaxConns)
	}
	if cfg.Batch.Workers != DefaultConfig().Batch.Workers {
		t.Fatalf("unparsable value should keep the default, got %d", cfg.Batch.Workers)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "plates.yaml")
	doc := "pipeline:\n  max_width: 800\n  dedup: true\nocr:\n  lang: fra\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PLATES_CONFIG_FILE", path)
	t.Setenv("TESSERACT_LANG", "deu")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Pipeline.MaxWidth != 800 || !cfg.Pipeline.Dedup {
		t.Fatalf("file not applied: %+v", cfg.Pipeline)
	}
	if cfg.OCR.Lang != "deu" {
		t.Fatalf("env should win over file, got %q", cfg.OCR.Lang)
	}
	if cfg.OCR.PSM != 7 {
		t.Fatalf("defaults should survive the overlay, got psm=%d", cfg.OCR.PSM)
	}

	t.Setenv("PLATES_CONFIG_FILE", filepath.Join(dir, "missing.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Fatal("want error for a missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero width", func(c *Config) { c.Pipeline.MaxWidth = 0 }, true},
		{"confidence above one", func(c *Config) { c.Pipeline.RegionConfidence = 1.2 }, true},
		{"confidence below band", func(c *Config) { c.Pipeline.RegionConfidence = 0.3 }, true},
		{"confidence above band", func(c *Config) { c.Pipeline.RegionConfidence = 0.8 }, true},
		{"confidence within band", func(c *Config) { c.Pipeline.RegionConfidence = 0.6 }, false},
		{"confidence at lower edge", func(c *Config) { c.Pipeline.RegionConfidence = 0.5 }, false},
		{"negative min confidence", func(c *Config) { c.Pipeline.MinConfidence = -0.1 }, true},
		{"unknown engine", func(c *Config) { c.OCR.Engine = "easyocr" }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, true},
		{"postgres with dsn", func(c *Config) {
			c.Database.Driver = "postgres"
			c.Database.DSN = "postgres://localhost/plates"
		}, false},
		{"no workers", func(c *Config) { c.Batch.Workers = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("config errors should wrap ErrInvalidInput: %v", err)
			}
		})
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
