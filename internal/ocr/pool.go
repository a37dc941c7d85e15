package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

// Pool hands one Reader to each concurrent caller, for engines whose handles
// are not safe to share. Pool itself is a Reader.
type Pool struct {
	readers chan Reader
	all     []Reader
}

// NewPool builds size readers with factory.
func NewPool(size int, factory func() (Reader, error)) (*Pool, error) {
	if size <= 0 {
		size = 1
	}
	p := &Pool{readers: make(chan Reader, size)}
	for i := 0; i < size; i++ {
		r, err := factory()
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("pool reader %d: %w", i, err)
		}
		p.all = append(p.all, r)
		p.readers <- r
	}
	return p, nil
}

func (p *Pool) Read(ctx context.Context, img image.Image) ([]entity.Observation, error) {
	var r Reader
	select {
	case r = <-p.readers:
	case <-ctx.Done():
		return nil, common.OCRFailure("pool", ctx.Err())
	}
	defer func() { p.readers <- r }()
	return r.Read(ctx, img)
}

// Size is the number of pooled readers.
func (p *Pool) Size() int { return len(p.all) }

// Close closes every pooled reader that implements io.Closer.
func (p *Pool) Close() error {
	var errs []error
	for _, r := range p.all {
		if c, ok := r.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

type deadlineReader struct {
	next    Reader
	timeout time.Duration
}

// WithDeadline bounds every Read by timeout. Exceeding it is reported as an
// OCR failure even if the wrapped engine ignores the context.
func WithDeadline(r Reader, timeout time.Duration) Reader {
	return &deadlineReader{next: r, timeout: timeout}
}

type readResult struct {
	obs []entity.Observation
	err error
}

func (d *deadlineReader) Read(ctx context.Context, img image.Image) ([]entity.Observation, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan readResult, 1)
	go func() {
		obs, err := d.next.Read(ctx, img)
		done <- readResult{obs: obs, err: err}
	}()

	select {
	case res := <-done:
		return res.obs, res.err
	case <-ctx.Done():
		return nil, common.OCRFailure("deadline", ctx.Err())
	}
}

// Close forwards to the wrapped reader.
func (d *deadlineReader) Close() error {
	if c, ok := d.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
