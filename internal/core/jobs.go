package core

import (
	"context"

	"github.com/joseph-ayodele/plates-tracker/constants"
	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/imageio"
	"github.com/joseph-ayodele/plates-tracker/internal/ingest"
	"github.com/joseph-ayodele/plates-tracker/internal/pipeline"
	"github.com/joseph-ayodele/plates-tracker/internal/queue"
	"github.com/joseph-ayodele/plates-tracker/internal/utils"
)

// JobResult is stored as a completed queue job's result.
type JobResult struct {
	RunID        string            `json:"run_id"`
	Status       string            `json:"status"`
	Regions      int               `json:"regions"`
	FallbackUsed bool              `json:"fallback_used"`
	Plates       []utils.PlateView `json:"plates"`
}

// JobHandler runs queue jobs through proc. Inline image bytes take
// precedence over Path. An image that cannot be loaded fails the job.
func JobHandler(proc *pipeline.Processor) queue.Handler {
	return queue.HandlerFunc(func(ctx context.Context, job queue.Job) (any, error) {
		var (
			out pipeline.FileOutcome
			err error
		)
		if len(job.Image) > 0 {
			name := job.Filename
			if name == "" {
				name = job.ID
			}
			img, derr := imageio.DecodeBytes(name, job.Image)
			if derr != nil {
				return nil, derr
			}
			out, err = proc.ProcessImage(ctx, name, img, ingest.HashBytes(job.Image))
		} else {
			out, err = proc.ProcessFile(ctx, job.Path, job.Force)
		}
		if err != nil {
			return nil, err
		}
		if out.Status == constants.RunStatusLoadError {
			return nil, common.NewAppError(common.CodeImageLoad, out.Error, common.ErrImageLoad)
		}
		return JobResult{
			RunID:        out.RunID.String(),
			Status:       string(out.Status),
			Regions:      out.Regions,
			FallbackUsed: out.FallbackUsed,
			Plates:       utils.ToPlateViews(out.Records),
		}, nil
	})
}
