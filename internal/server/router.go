package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
)

const requestIDHeader = "X-Request-ID"

// NewRouter mounts the plates API.
//
//	GET  /health
//	POST /api/v1/plates/recognize
//	GET  /api/v1/plates?from=&to=
//	GET  /api/v1/plates/runs/:id
//	POST /api/v1/plates/jobs
//	GET  /api/v1/plates/jobs/:id
func NewRouter(h *PlatesHandler, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestContext(logger))
	r.Use(cors())
	r.MaxMultipartMemory = h.maxUpload

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1/plates")
	{
		v1.POST("/recognize", h.Recognize)
		v1.GET("", h.ListPlates)
		v1.GET("/runs/:id", h.GetRun)
		v1.POST("/jobs", h.EnqueueJob)
		v1.GET("/jobs/:id", h.JobStatus)
	}
	return r
}

// RequestContext tags every request with an id (taken from X-Request-ID when
// present), puts a request-scoped logger in the context and logs the result.
func RequestContext(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		reqLogger := logger.With("request_id", id)
		ctx := common.WithLogger(common.WithRequestID(c.Request.Context(), id), reqLogger)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		reqLogger.Info("http.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
