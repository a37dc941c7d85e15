package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
)

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Producer enqueues jobs and reads their status.
type Producer struct {
	client redis.Cmdable
	name   string
}

func NewProducer(client redis.Cmdable, name string) *Producer {
	return &Producer{client: client, name: name}
}

// Enqueue stores the job and pushes its id. A missing ID is generated.
func (p *Producer) Enqueue(ctx context.Context, job Job) (string, error) {
	if job.Path == "" && len(job.Image) == 0 {
		return "", common.NewAppError(common.CodeInvalid, "job needs a path or image bytes", common.ErrInvalidInput)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, dataKey(p.name), job.ID, data)
		pipe.LPush(ctx, p.name, job.ID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job.ID, nil
}

// Status reports where a job is.
func (p *Producer) Status(ctx context.Context, id string) (JobStatus, error) {
	st := JobStatus{ID: id}
	if ok, err := p.client.SIsMember(ctx, completedKey(p.name), id).Result(); err != nil {
		return st, err
	} else if ok {
		st.Status = StatusCompleted
		if res, err := p.client.HGet(ctx, resultsKey(p.name), id).Result(); err == nil {
			st.Result = json.RawMessage(res)
		}
		return st, nil
	}
	if ok, err := p.client.SIsMember(ctx, failedKey(p.name), id).Result(); err != nil {
		return st, err
	} else if ok {
		st.Status = StatusFailed
		st.Error, _ = p.client.HGet(ctx, errorsKey(p.name), id).Result()
		return st, nil
	}
	if ok, err := p.client.SIsMember(ctx, processingKey(p.name), id).Result(); err != nil {
		return st, err
	} else if ok {
		st.Status = StatusProcessing
		return st, nil
	}
	if ok, err := p.client.HExists(ctx, dataKey(p.name), id).Result(); err != nil {
		return st, err
	} else if ok {
		st.Status = StatusQueued
		return st, nil
	}
	return st, common.NewAppError(common.CodeNotFound, "job "+id, common.ErrNotFound)
}

// Handler processes one job and returns a JSON-serializable result.
type Handler interface {
	HandleJob(ctx context.Context, job Job) (any, error)
}

type HandlerFunc func(ctx context.Context, job Job) (any, error)

func (f HandlerFunc) HandleJob(ctx context.Context, job Job) (any, error) { return f(ctx, job) }

type ConsumerConfig struct {
	QueueName   string
	Concurrency int
	Timeout     time.Duration // per job
	PollTimeout time.Duration // BRPOP block time
}

// Consumer runs workers that pop job ids with BRPOP.
type Consumer struct {
	client  redis.Cmdable
	handler Handler
	cfg     ConsumerConfig
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewConsumer(client redis.Cmdable, handler Handler, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueName == "" {
		cfg.QueueName = "plates:jobs"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	return &Consumer{client: client, handler: handler, cfg: cfg, logger: logger}
}

// Start launches the workers; they stop when ctx ends or Stop is called.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("queue consumer starting", "queue", c.cfg.QueueName, "concurrency", c.cfg.Concurrency)
	for i := 0; i < c.cfg.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i+1)
	}
}

// Stop cancels the workers and waits for in-flight jobs.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info("queue consumer stopped", "queue", c.cfg.QueueName)
}

func (c *Consumer) worker(ctx context.Context, id int) {
	defer c.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		_, err := c.ProcessNext(ctx)
		switch {
		case err == nil, errors.Is(err, errNoJob):
		case ctx.Err() != nil:
			return
		default:
			c.logger.Warn("queue worker error", "worker_id", id, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

var errNoJob = errors.New("no jobs available")

// ProcessNext pops and handles one job. It returns the job id handled.
func (c *Consumer) ProcessNext(ctx context.Context) (string, error) {
	q := c.cfg.QueueName
	res, err := c.client.BRPop(ctx, c.cfg.PollTimeout, q).Result()
	if errors.Is(err, redis.Nil) {
		return "", errNoJob
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch job: %w", err)
	}
	if len(res) < 2 {
		return "", fmt.Errorf("invalid job result")
	}
	id := res[1]

	raw, err := c.client.HGet(ctx, dataKey(q), id).Result()
	if err != nil {
		return id, fmt.Errorf("failed to get job data: %w", err)
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		c.markFailed(ctx, id, fmt.Sprintf("bad job payload: %v", err))
		return id, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	c.client.SAdd(ctx, processingKey(q), id)
	logger := c.logger.With("job_id", id)
	logger.Info("queue.job.start", "file", job.Filename, "attempt", job.Attempts+1)

	jobCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	jobCtx = common.WithLogger(common.WithRequestID(jobCtx, id), logger)
	start := time.Now()
	result, err := c.handler.HandleJob(jobCtx, job)
	timedOut := errors.Is(jobCtx.Err(), context.DeadlineExceeded)
	cancel()

	if err != nil {
		if timedOut {
			err = fmt.Errorf("processing timeout after %s: %w", c.cfg.Timeout, err)
		}
		job.Attempts++
		// an unreadable image will not improve on retry
		if job.Attempts < job.MaxRetries && ctx.Err() == nil && !common.IsImageLoad(err) {
			data, _ := json.Marshal(job)
			c.client.SRem(ctx, processingKey(q), id)
			c.client.HSet(ctx, dataKey(q), id, data)
			c.client.LPush(ctx, q, id)
			logger.Warn("queue.job.retry", "attempt", job.Attempts, "max", job.MaxRetries, "error", err)
			return id, nil
		}
		c.markFailed(ctx, id, err.Error())
		logger.Error("queue.job.failed", "error", err)
		return id, nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.markFailed(ctx, id, fmt.Sprintf("encode result: %v", err))
		return id, nil
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, processingKey(q), id)
		pipe.SAdd(ctx, completedKey(q), id)
		pipe.HSet(ctx, resultsKey(q), id, data)
		return nil
	})
	if err != nil {
		return id, fmt.Errorf("failed to record result: %w", err)
	}
	logger.Info("queue.job.done", "elapsed_ms", time.Since(start).Milliseconds())
	return id, nil
}

func (c *Consumer) markFailed(ctx context.Context, id, msg string) {
	q := c.cfg.QueueName
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, processingKey(q), id)
		pipe.SAdd(ctx, failedKey(q), id)
		pipe.HSet(ctx, errorsKey(q), id, msg)
		return nil
	})
	if err != nil {
		c.logger.Error("queue.mark_failed", "job_id", id, "error", err)
	}
}
