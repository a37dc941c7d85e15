package ocr

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/entity"
)

func TestPoolOneReaderPerCaller(t *testing.T) {
	var inUse, peak int32
	factory := func() (Reader, error) {
		var busy int32
		return ReaderFunc(func(ctx context.Context, img image.Image) ([]entity.Observation, error) {
			if !atomic.CompareAndSwapInt32(&busy, 0, 1) {
				return nil, errors.New("reader shared between callers")
			}
			defer atomic.StoreInt32(&busy, 0)
			n := atomic.AddInt32(&inUse, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inUse, -1)
			return []entity.Observation{{Text: "X"}}, nil
		}), nil
	}
	p, err := NewPool(3, factory)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Read(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if peak > 3 {
		t.Fatalf("peak concurrency %d exceeds pool size", peak)
	}
}

func TestNewPoolFactoryError(t *testing.T) {
	calls := 0
	_, err := NewPool(2, func() (Reader, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("boom")
		}
		return ReaderFunc(func(context.Context, image.Image) ([]entity.Observation, error) { return nil, nil }), nil
	})
	if err == nil {
		t.Fatal("expected factory error")
	}
}

func TestWithDeadline(t *testing.T) {
	slow := ReaderFunc(func(ctx context.Context, img image.Image) ([]entity.Observation, error) {
		time.Sleep(200 * time.Millisecond)
		return []entity.Observation{{Text: "late"}}, nil
	})
	_, err := WithDeadline(slow, 10*time.Millisecond).Read(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	if !errors.Is(err, common.ErrOCRFailure) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline OCR failure, got %v", err)
	}

	fast := ReaderFunc(func(ctx context.Context, img image.Image) ([]entity.Observation, error) {
		return []entity.Observation{{Text: "ok"}}, nil
	})
	obs, err := WithDeadline(fast, time.Second).Read(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	if err != nil || len(obs) != 1 {
		t.Fatalf("got %v, %v", obs, err)
	}
}
