package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/core"
	"github.com/joseph-ayodele/plates-tracker/internal/queue"
	"github.com/joseph-ayodele/plates-tracker/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	inmem := flag.Bool("inmem", false, "use in-memory SQLite database")
	upload := flag.Bool("upload", false, "upload artifacts to MinIO when MINIO_ENDPOINT is set")
	flag.Parse()

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := core.Build(ctx, cfg, core.Options{InMemory: *inmem, Upload: *upload}, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	// Optional Redis job queue: producer for the API, consumer for the worker.
	var (
		jobs     server.JobQueue
		consumer *queue.Consumer
		rdb      *redis.Client
	)
	if cfg.Queue.RedisURL != "" {
		rdb, err = queue.Connect(ctx, cfg.Queue.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		jobs = queue.NewProducer(rdb, cfg.Queue.Name)
		consumer = queue.NewConsumer(rdb, core.JobHandler(svc.Processor), queue.ConsumerConfig{
			QueueName:   cfg.Queue.Name,
			Concurrency: cfg.Queue.Concurrency,
			Timeout:     cfg.Batch.ImageTimeout,
			PollTimeout: cfg.Queue.PollTimeout,
		}, logger)
		consumer.Start(ctx)
	}

	// HTTP API
	gin.SetMode(gin.ReleaseMode)
	handler := server.NewPlatesHandler(server.Deps{
		Processor:      svc.Processor,
		Runs:           svc.Runs,
		Plates:         svc.Plates,
		Jobs:           jobs,
		DB:             svc.DB,
		MaxUploadBytes: cfg.Server.MaxUploadMiB << 20,
	}, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewRouter(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC health + reflection
	grpcServer, healthServer := server.NewGRPCServer()
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}

	logger.Info("platesd listening", "http", cfg.Server.HTTPAddr, "grpc", cfg.Server.GRPCAddr, "engine", cfg.OCR.Engine)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown", "error", err)
	}
	if consumer != nil {
		consumer.Stop()
	}
	grpcServer.GracefulStop()
	logger.Info("stopped")
}
