// Package pipeline runs load, recognize, report and persist for each image.
package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/plates-tracker/constants"
	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/entity"
	"github.com/joseph-ayodele/plates-tracker/internal/imageio"
	"github.com/joseph-ayodele/plates-tracker/internal/ingest"
	"github.com/joseph-ayodele/plates-tracker/internal/recognize"
	"github.com/joseph-ayodele/plates-tracker/internal/report"
	"github.com/joseph-ayodele/plates-tracker/internal/repository"
)

// persistTimeout bounds the report and database writes that close a run,
// which run after the image's own deadline may have expired.
const persistTimeout = 10 * time.Second

// detach keeps ctx's values but not its deadline or cancellation.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

type ImageLoader interface {
	Load(ctx context.Context, path string) (image.Image, error)
}

type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (recognize.Result, error)
}

type ReportWriter interface {
	Write(ctx context.Context, in report.Input) (report.Outputs, error)
}

// FileOutcome is the result of one image. Error is set for LOAD_ERROR and
// FAILED, and for DONE or NO_PLATES when recognition ran out of time.
type FileOutcome struct {
	Path         string               `json:"path"`
	RunID        uuid.UUID            `json:"run_id"`
	Status       constants.RunStatus  `json:"status"`
	Records      []entity.PlateRecord `json:"records"`
	Regions      int                  `json:"regions"`
	FallbackUsed bool                 `json:"fallback_used"`
	Outputs      report.Outputs       `json:"outputs"`
	Error        string               `json:"error,omitempty"`
	Duration     time.Duration        `json:"duration"`
	ProcessedAt  time.Time            `json:"processed_at"`
}

// Processor wires the stages. Writer, Runs and Plates are optional.
type Processor struct {
	loader     ImageLoader
	recognizer Recognizer
	writer     ReportWriter
	runs       repository.RunRepository
	plates     repository.PlateRepository
	engine     string
	logger     *slog.Logger
}

type Deps struct {
	Loader     ImageLoader
	Recognizer Recognizer
	Writer     ReportWriter
	Runs       repository.RunRepository
	Plates     repository.PlateRepository
	Engine     string
}

func NewProcessor(d Deps, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		loader:     d.Loader,
		recognizer: d.Recognizer,
		writer:     d.Writer,
		runs:       d.Runs,
		plates:     d.Plates,
		engine:     d.Engine,
		logger:     logger,
	}
}

// ProcessFile recognizes one image file. A missing or undecodable image is a
// LOAD_ERROR outcome, not an error; the returned error is reserved for
// failures of the pipeline itself (recognition, reports, persistence).
// Content already finished under the same hash is SKIPPED unless force.
func (p *Processor) ProcessFile(ctx context.Context, path string, force bool) (FileOutcome, error) {
	start := time.Now()
	out := FileOutcome{Path: path, ProcessedAt: start}

	hash, _, hashErr := ingest.HashFile(path)
	if hashErr == nil && p.runs != nil && !force {
		if prev, err := p.runs.FindDoneByHash(ctx, hash); err == nil {
			return p.skipped(ctx, out, prev), nil
		} else if !errors.Is(err, common.ErrNotFound) {
			return p.fail(ctx, out, uuid.Nil, err)
		}
	}

	runID, err := p.startRun(ctx, path, hash)
	if err != nil {
		return p.fail(ctx, out, uuid.Nil, err)
	}
	out.RunID = runID
	logger := common.LoggerFromContext(ctx, p.logger).With("file", filepath.Base(path), "run_id", runID)
	ctx = common.WithLogger(common.WithRunID(ctx, runID.String()), logger)

	var img image.Image
	if hashErr != nil {
		err = common.ImageLoadError(path, hashErr)
	} else {
		img, err = p.loader.Load(imageio.WithContentHash(ctx, hex.EncodeToString(hash)), path)
	}
	if err != nil {
		logger.Warn("pipeline.load_failed", "error", err)
		return p.loadError(ctx, out, err)
	}

	return p.recognize(ctx, out, img, start)
}

// ProcessImage recognizes an already decoded image, e.g. an upload. name
// only labels the reports.
func (p *Processor) ProcessImage(ctx context.Context, name string, img image.Image, hash []byte) (FileOutcome, error) {
	start := time.Now()
	out := FileOutcome{Path: name, ProcessedAt: start}
	runID, err := p.startRun(ctx, name, hash)
	if err != nil {
		return p.fail(ctx, out, uuid.Nil, err)
	}
	out.RunID = runID
	logger := common.LoggerFromContext(ctx, p.logger).With("file", name, "run_id", runID)
	ctx = common.WithLogger(common.WithRunID(ctx, runID.String()), logger)
	return p.recognize(ctx, out, img, start)
}

func (p *Processor) recognize(ctx context.Context, out FileOutcome, img image.Image, start time.Time) (FileOutcome, error) {
	res, err := p.recognizer.Recognize(ctx, img)
	deadlineErr := ctx.Err()
	ctx, cancel := detach(ctx)
	defer cancel()
	if err != nil {
		return p.fail(ctx, out, out.RunID, err)
	}
	out.Records = res.Records
	out.Regions = res.Regions
	out.FallbackUsed = res.FallbackUsed
	out.Status = constants.RunStatusDone
	if len(res.Records) == 0 {
		out.Status = constants.RunStatusNoPlates
	}
	if deadlineErr != nil {
		// Keeps the run out of FindDoneByHash so the image is retried.
		out.Error = "recognition incomplete: " + deadlineErr.Error()
		common.LoggerFromContext(ctx, p.logger).Warn("pipeline.incomplete", "error", deadlineErr, "plates", len(res.Records))
	}

	if p.writer != nil {
		outputs, err := p.writer.Write(ctx, report.Input{
			SourcePath: out.Path,
			Image:      res.Image,
			Records:    res.Records,
			Timestamp:  start,
		})
		if err != nil {
			return p.fail(ctx, out, out.RunID, err)
		}
		out.Outputs = outputs
	}

	if p.plates != nil && p.runs != nil {
		if err := p.plates.InsertMany(ctx, out.RunID, res.Records); err != nil {
			return p.fail(ctx, out, out.RunID, err)
		}
	}
	if err := p.finishRun(ctx, out); err != nil {
		return p.fail(ctx, out, uuid.Nil, err)
	}

	out.Duration = time.Since(start)
	common.LoggerFromContext(ctx, p.logger).Info("pipeline.done",
		"status", out.Status,
		"plates", len(out.Records),
		"regions", out.Regions,
		"fallback", out.FallbackUsed,
		"elapsed_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

func (p *Processor) loadError(ctx context.Context, out FileOutcome, cause error) (FileOutcome, error) {
	ctx, cancel := detach(ctx)
	defer cancel()
	out.Status = constants.RunStatusLoadError
	out.Error = cause.Error()
	if p.writer != nil {
		outputs, err := p.writer.Write(ctx, report.Input{SourcePath: out.Path, Timestamp: out.ProcessedAt, Err: cause})
		if err != nil {
			return p.fail(ctx, out, out.RunID, err)
		}
		out.Outputs = outputs
	}
	if err := p.finishRun(ctx, out); err != nil {
		return p.fail(ctx, out, uuid.Nil, err)
	}
	out.Duration = time.Since(out.ProcessedAt)
	return out, nil
}

func (p *Processor) skipped(ctx context.Context, out FileOutcome, prev *entity.PlateRun) FileOutcome {
	out.Status = constants.RunStatusSkipped
	out.RunID = prev.ID
	out.Regions = prev.Regions
	out.FallbackUsed = prev.FallbackUsed
	if p.plates != nil {
		stored, err := p.plates.ListByRun(ctx, prev.ID)
		if err != nil {
			p.logger.Warn("pipeline.skip.list_failed", "run_id", prev.ID, "error", err)
		}
		for _, s := range stored {
			out.Records = append(out.Records, s.PlateRecord)
		}
	}
	p.logger.Info("pipeline.skipped", "file", filepath.Base(out.Path), "previous_run", prev.ID)
	out.Duration = time.Since(out.ProcessedAt)
	return out
}

// fail marks the run FAILED when one was started and returns err.
func (p *Processor) fail(ctx context.Context, out FileOutcome, runID uuid.UUID, err error) (FileOutcome, error) {
	ctx, cancel := detach(ctx)
	defer cancel()
	out.Status = constants.RunStatusFailed
	out.Error = err.Error()
	out.Duration = time.Since(out.ProcessedAt)
	if runID != uuid.Nil && p.runs != nil {
		if ferr := p.runs.Finish(ctx, runID, repository.RunOutcome{
			Status: constants.RunStatusFailed, Engine: p.engine, Error: err.Error(),
		}); ferr != nil {
			p.logger.Error("pipeline.finish_failed", "run_id", runID, "error", ferr)
		}
	}
	p.logger.Error("pipeline.failed", "file", filepath.Base(out.Path), "error", err)
	return out, err
}

func (p *Processor) startRun(ctx context.Context, path string, hash []byte) (uuid.UUID, error) {
	if p.runs == nil {
		return uuid.New(), nil
	}
	run, err := p.runs.Start(ctx, path, hash)
	if err != nil {
		return uuid.Nil, err
	}
	return run.ID, nil
}

func (p *Processor) finishRun(ctx context.Context, out FileOutcome) error {
	if p.runs == nil {
		return nil
	}
	return p.runs.Finish(ctx, out.RunID, repository.RunOutcome{
		Status:       out.Status,
		Engine:       p.engine,
		Regions:      out.Regions,
		FallbackUsed: out.FallbackUsed,
		PlateCount:   len(out.Records),
		Error:        out.Error,
	})
}
