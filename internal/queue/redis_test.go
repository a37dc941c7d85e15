package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
)

func newClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestConnect_BadURL(t *testing.T) {
	if _, err := Connect(context.Background(), "not-a-url"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := Connect(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestProducerConsumer_Completed(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)
	p := NewProducer(client, "plates:jobs")

	id, err := p.Enqueue(ctx, Job{Path: "/data/in/car.jpg", Filename: "car.jpg"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if st, err := p.Status(ctx, id); err != nil || st.Status != StatusQueued {
		t.Fatalf("status before = %+v, %v", st, err)
	}

	var got Job
	h := HandlerFunc(func(ctx context.Context, job Job) (any, error) {
		got = job
		if common.RequestIDFromContext(ctx) != job.ID {
			return nil, errors.New("request id missing")
		}
		return map[string]any{"plates": []string{"AB-234-CD"}}, nil
	})
	c := NewConsumer(client, h, ConsumerConfig{QueueName: "plates:jobs", PollTimeout: 100 * time.Millisecond}, nil)
	handled, err := c.ProcessNext(ctx)
	if err != nil || handled != id {
		t.Fatalf("ProcessNext = %s, %v", handled, err)
	}
	if got.Path != "/data/in/car.jpg" {
		t.Fatalf("handler got %+v", got)
	}

	st, err := p.Status(ctx, id)
	if err != nil || st.Status != StatusCompleted {
		t.Fatalf("status after = %+v, %v", st, err)
	}
	var result struct{ Plates []string }
	if err := json.Unmarshal(st.Result, &result); err != nil || len(result.Plates) != 1 {
		t.Fatalf("result = %s, %v", st.Result, err)
	}

	if _, err := c.ProcessNext(ctx); !errors.Is(err, errNoJob) {
		t.Fatalf("empty queue = %v", err)
	}
}

func TestConsumer_RetriesThenFails(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)
	p := NewProducer(client, "q")
	id, err := p.Enqueue(ctx, Job{Image: []byte{1, 2, 3}, MaxRetries: 2})
	if err != nil {
		t.Fatal(err)
	}

	calls := 0
	h := HandlerFunc(func(context.Context, Job) (any, error) {
		calls++
		return nil, errors.New("ocr unavailable")
	})
	c := NewConsumer(client, h, ConsumerConfig{QueueName: "q", PollTimeout: 100 * time.Millisecond}, nil)

	if _, err := c.ProcessNext(ctx); err != nil {
		t.Fatal(err)
	}
	if st, _ := p.Status(ctx, id); st.Status != StatusQueued {
		t.Fatalf("after first failure status = %s, want requeued", st.Status)
	}
	if _, err := c.ProcessNext(ctx); err != nil {
		t.Fatal(err)
	}
	st, err := p.Status(ctx, id)
	if err != nil || st.Status != StatusFailed || st.Error != "ocr unavailable" {
		t.Fatalf("final status = %+v, %v", st, err)
	}
	if calls != 2 {
		t.Fatalf("handler calls = %d", calls)
	}
}

func TestConsumer_StartStop(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)
	p := NewProducer(client, "q")

	done := make(chan string, 1)
	h := HandlerFunc(func(_ context.Context, job Job) (any, error) {
		done <- job.ID
		return "ok", nil
	})
	c := NewConsumer(client, h, ConsumerConfig{QueueName: "q", Concurrency: 2, PollTimeout: 50 * time.Millisecond}, nil)
	c.Start(ctx)
	defer c.Stop()

	id, err := p.Enqueue(ctx, Job{Path: "x.jpg"})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-done:
		if got != id {
			t.Fatalf("handled %s, want %s", got, id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job not consumed")
	}
}

func TestProducer_ValidationAndNotFound(t *testing.T) {
	ctx := context.Background()
	p := NewProducer(newClient(t), "q")
	if _, err := p.Enqueue(ctx, Job{}); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("empty job = %v", err)
	}
	if _, err := p.Status(ctx, "nope"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("unknown id = %v", err)
	}
}

func TestConsumer_ImageLoadFailsWithoutRetry(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)
	p := NewProducer(client, "q")
	id, err := p.Enqueue(ctx, Job{Image: []byte{1, 2, 3}, MaxRetries: 3})
	if err != nil {
		t.Fatal(err)
	}

	calls := 0
	h := HandlerFunc(func(context.Context, Job) (any, error) {
		calls++
		return nil, common.ImageLoadError("upload", errors.New("unknown format"))
	})
	c := NewConsumer(client, h, ConsumerConfig{QueueName: "q", PollTimeout: 100 * time.Millisecond}, nil)

	if _, err := c.ProcessNext(ctx); err != nil {
		t.Fatal(err)
	}
	st, err := p.Status(ctx, id)
	if err != nil || st.Status != StatusFailed {
		t.Fatalf("status = %+v, %v", st, err)
	}
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
}
