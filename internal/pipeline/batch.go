package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/plates-tracker/constants"
	"github.com/joseph-ayodele/plates-tracker/internal/async"
	"github.com/joseph-ayodele/plates-tracker/internal/report"
)

type BatchConfig struct {
	Workers      int
	QueueSize    int
	ImageTimeout time.Duration
	Force        bool
}

// Summary aggregates a batch. Processed counts images that decoded and went
// through recognition, including those with no plates.
type Summary struct {
	Total        int
	Processed    int
	WithPlates   int
	NoPlates     int
	Skipped      int
	LoadErrors   int
	Failed       int
	Plates       int
	UniquePlates []string
	Duration     time.Duration
}

// DetectionRate is the share of images with at least one plate.
func (s Summary) DetectionRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.WithPlates) / float64(s.Total)
}

// RunBatch processes paths on a worker pool and returns outcomes in input
// order. One image failing never stops the others.
func (p *Processor) RunBatch(ctx context.Context, paths []string, cfg BatchConfig) ([]FileOutcome, Summary) {
	start := time.Now()
	outcomes := make([]FileOutcome, len(paths))

	var mu sync.Mutex
	handler := async.HandlerFunc(func(ctx context.Context, job async.Job) error {
		out, err := p.ProcessFile(ctx, job.Path, job.Force)
		mu.Lock()
		outcomes[job.Index] = out
		mu.Unlock()
		return err
	})

	q := async.NewProcessorQueue(handler, p.logger,
		async.WithWorkers(cfg.Workers),
		async.WithQueueSize(cfg.QueueSize),
		async.WithProcessTimeout(cfg.ImageTimeout),
		async.WithBaseContext(ctx),
	)
	for i, path := range paths {
		if err := q.Enqueue(ctx, async.Job{Path: path, Index: i, Force: cfg.Force}); err != nil {
			p.logger.Warn("batch.enqueue_failed", "path", path, "error", err)
			mu.Lock()
			outcomes[i] = FileOutcome{Path: path, Status: constants.RunStatusFailed, Error: err.Error()}
			mu.Unlock()
		}
	}
	q.Shutdown(context.Background())

	sum := Summarize(outcomes)
	sum.Duration = time.Since(start)
	p.logger.Info("batch.done",
		"total", sum.Total,
		"processed", sum.Processed,
		"plates", sum.Plates,
		"unique", len(sum.UniquePlates),
		"elapsed_ms", sum.Duration.Milliseconds(),
	)
	return outcomes, sum
}

// Summarize counts outcomes by status and collects sorted unique plate texts.
func Summarize(outcomes []FileOutcome) Summary {
	s := Summary{Total: len(outcomes)}
	unique := map[string]struct{}{}
	for _, o := range outcomes {
		switch o.Status {
		case constants.RunStatusDone:
			s.Processed++
			s.WithPlates++
		case constants.RunStatusNoPlates:
			s.Processed++
			s.NoPlates++
		case constants.RunStatusSkipped:
			s.Skipped++
			if len(o.Records) > 0 {
				s.WithPlates++
			}
		case constants.RunStatusLoadError:
			s.LoadErrors++
		default:
			s.Failed++
		}
		s.Plates += len(o.Records)
		for _, r := range o.Records {
			unique[r.Text] = struct{}{}
		}
	}
	for t := range unique {
		s.UniquePlates = append(s.UniquePlates, t)
	}
	sort.Strings(s.UniquePlates)
	return s
}

// WriteSummary prints the end-of-batch report.
func WriteSummary(w io.Writer, s Summary) error {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString("BATCH REPORT\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Images processed: %d/%d\n", s.Processed, s.Total)
	fmt.Fprintf(&b, "Images with plates: %d\n", s.WithPlates)
	fmt.Fprintf(&b, "No plates: %d, skipped: %d, load errors: %d, failed: %d\n", s.NoPlates, s.Skipped, s.LoadErrors, s.Failed)
	fmt.Fprintf(&b, "Plates detected: %d\n", s.Plates)
	fmt.Fprintf(&b, "Detection rate: %s\n", report.Percent(s.DetectionRate()))
	fmt.Fprintf(&b, "Unique plates: %d\n", len(s.UniquePlates))
	for _, t := range s.UniquePlates {
		fmt.Fprintf(&b, "  - %s\n", t)
	}
	if s.Duration > 0 {
		fmt.Fprintf(&b, "Elapsed: %s\n", s.Duration.Round(time.Millisecond))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteWorkbook saves the batch XLSX to path.
func WriteWorkbook(path string, outcomes []FileOutcome, logger *slog.Logger) error {
	entries := make([]report.WorkbookEntry, 0, len(outcomes))
	for _, o := range outcomes {
		entries = append(entries, report.WorkbookEntry{
			SourcePath:  o.Path,
			Status:      string(o.Status),
			Records:     o.Records,
			Error:       o.Error,
			ProcessedAt: o.ProcessedAt,
		})
	}
	data, err := report.BuildWorkbook(entries)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	if logger != nil {
		logger.Info("batch.workbook", "path", path, "rows", len(entries))
	}
	return nil
}
