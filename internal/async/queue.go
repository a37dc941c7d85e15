package async

import (
	"context"
	"time"
)

// Job is one image to recognize.
type Job struct {
	Path        string
	Index       int  // position in the submitting batch
	Force       bool // process even if identical content already finished
	SubmittedAt time.Time
	TraceID     string
}

// Handler processes a single job. The context carries the per-job timeout.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, job Job) error { return f(ctx, job) }

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
