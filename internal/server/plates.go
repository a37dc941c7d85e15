package server

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
	"github.com/joseph-ayodele/plates-tracker/internal/entity"
	"github.com/joseph-ayodele/plates-tracker/internal/imageio"
	"github.com/joseph-ayodele/plates-tracker/internal/ingest"
	"github.com/joseph-ayodele/plates-tracker/internal/pipeline"
	"github.com/joseph-ayodele/plates-tracker/internal/queue"
	"github.com/joseph-ayodele/plates-tracker/internal/repository"
	"github.com/joseph-ayodele/plates-tracker/internal/utils"
)

const defaultUploadName = "upload"

var errTooLarge = errors.New("upload too large")

type ImageProcessor interface {
	ProcessImage(ctx context.Context, name string, img image.Image, hash []byte) (pipeline.FileOutcome, error)
}

type JobQueue interface {
	Enqueue(ctx context.Context, job queue.Job) (string, error)
	Status(ctx context.Context, id string) (queue.JobStatus, error)
}

type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// RecognizeRequest is the JSON form of an upload.
type RecognizeRequest struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
	Filename    string `json:"filename"`
}

type RecognizeResponse struct {
	RunID        string            `json:"run_id"`
	Filename     string            `json:"filename"`
	Status       string            `json:"status"`
	Regions      int               `json:"regions"`
	FallbackUsed bool              `json:"fallback_used"`
	Plates       []utils.PlateView `json:"plates"`
	DurationMS   int64             `json:"duration_ms"`
}

// EnqueueRequest asks a queue worker to recognize a path it can read, or
// inline image bytes.
type EnqueueRequest struct {
	Path        string `json:"path"`
	ImageBase64 string `json:"image_base64"`
	Filename    string `json:"filename"`
	Force       bool   `json:"force"`
	MaxRetries  int    `json:"max_retries"`
}

// PlateSighting is a stored plate with the run it came from.
type PlateSighting struct {
	utils.PlateView
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Deps for the HTTP handlers. Runs, Plates, Jobs and DB are optional; the
// routes that need a missing one answer 503.
type Deps struct {
	Processor      ImageProcessor
	Runs           repository.RunRepository
	Plates         repository.PlateRepository
	Jobs           JobQueue
	DB             Pinger
	MaxUploadBytes int64
}

type PlatesHandler struct {
	processor ImageProcessor
	runs      repository.RunRepository
	plates    repository.PlateRepository
	jobs      JobQueue
	db        Pinger
	maxUpload int64
	logger    *slog.Logger
}

func NewPlatesHandler(d Deps, logger *slog.Logger) *PlatesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 16 << 20
	}
	return &PlatesHandler{
		processor: d.Processor,
		runs:      d.Runs,
		plates:    d.Plates,
		jobs:      d.Jobs,
		db:        d.DB,
		maxUpload: d.MaxUploadBytes,
		logger:    logger,
	}
}

// Recognize accepts a multipart "image" (or "file") part or a JSON body with
// a base64 image, and answers with the ranked plates.
func (h *PlatesHandler) Recognize(c *gin.Context) {
	ctx := c.Request.Context()
	logger := common.LoggerFromContext(ctx, h.logger)

	name, data, err := h.readUpload(c)
	if err != nil {
		h.reject(c, err)
		return
	}
	img, err := imageio.DecodeBytes(name, data)
	if err != nil {
		logger.Warn("http.recognize.decode_failed", "file", name, "error", err)
		h.fail(c, err)
		return
	}

	out, err := h.processor.ProcessImage(ctx, name, img, ingest.HashBytes(data))
	if err != nil {
		logger.Error("http.recognize.failed", "file", name, "error", err)
		h.fail(c, err)
		return
	}
	logger.Info("http.recognize.done", "file", name, "run_id", out.RunID, "plates", len(out.Records))

	c.JSON(http.StatusOK, RecognizeResponse{
		RunID:        out.RunID.String(),
		Filename:     name,
		Status:       string(out.Status),
		Regions:      out.Regions,
		FallbackUsed: out.FallbackUsed,
		Plates:       utils.ToPlateViews(out.Records),
		DurationMS:   out.Duration.Milliseconds(),
	})
}

func (h *PlatesHandler) readUpload(c *gin.Context) (string, []byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+(1<<20))
		fh, err := c.FormFile("image")
		if errors.Is(err, http.ErrMissingFile) {
			fh, err = c.FormFile("file")
		}
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return "", nil, errTooLarge
			}
			return "", nil, errors.New("multipart field \"image\" is required")
		}
		if fh.Size > h.maxUpload {
			return "", nil, errTooLarge
		}
		f, err := fh.Open()
		if err != nil {
			return "", nil, err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", nil, err
		}
		return nameOr(fh.Filename), data, nil
	}

	var req RecognizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return "", nil, err
	}
	data, err := h.decodeBase64(req.ImageBase64)
	if err != nil {
		return "", nil, err
	}
	return nameOr(req.Filename), data, nil
}

// decodeBase64 accepts raw base64 or a data URL.
func (h *PlatesHandler) decodeBase64(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	s = strings.TrimSpace(s)
	if int64(base64.StdEncoding.DecodedLen(len(s))) > h.maxUpload+2 {
		return nil, errTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("invalid base64 image")
	}
	if int64(len(data)) > h.maxUpload {
		return nil, errTooLarge
	}
	return data, nil
}

// GetRun returns a stored run with its plates in rank order.
func (h *PlatesHandler) GetRun(c *gin.Context) {
	if h.runs == nil || h.plates == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence is disabled"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run id must be a UUID"})
		return
	}
	ctx := c.Request.Context()
	run, err := h.runs.Get(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	stored, err := h.plates.ListByRun(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.ToRunView(run, storedRecords(stored)))
}

// ListPlates lists stored plates, optionally within ?from=&to= (YYYY-MM-DD,
// to exclusive).
func (h *PlatesHandler) ListPlates(c *gin.Context) {
	if h.plates == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence is disabled"})
		return
	}
	from, err := dateParam(c, "from")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, err := dateParam(c, "to")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	stored, err := h.plates.ListAll(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	items := make([]PlateSighting, 0, len(stored))
	for _, sp := range stored {
		items = append(items, PlateSighting{
			PlateView: utils.ToPlateView(sp.PlateRecord),
			RunID:     sp.RunID.String(),
			CreatedAt: sp.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(items), "plates": items})
}

// EnqueueJob pushes a recognition job for a queue worker.
func (h *PlatesHandler) EnqueueJob(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue is disabled"})
		return
	}
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job := queue.Job{
		Path:       strings.TrimSpace(req.Path),
		Filename:   req.Filename,
		Force:      req.Force,
		MaxRetries: req.MaxRetries,
	}
	if req.ImageBase64 != "" {
		data, err := h.decodeBase64(req.ImageBase64)
		if err != nil {
			h.reject(c, err)
			return
		}
		job.Image = data
		job.Filename = nameOr(req.Filename)
	}
	id, err := h.jobs.Enqueue(c.Request.Context(), job)
	if err != nil {
		if errors.Is(err, common.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": id, "status": queue.StatusQueued})
}

func (h *PlatesHandler) JobStatus(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue is disabled"})
		return
	}
	st, err := h.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *PlatesHandler) Health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context(), 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// reject answers a malformed request.
func (h *PlatesHandler) reject(c *gin.Context, err error) {
	if errors.Is(err, errTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (h *PlatesHandler) fail(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

func storedRecords(stored []repository.StoredPlate) []entity.PlateRecord {
	out := make([]entity.PlateRecord, 0, len(stored))
	for _, sp := range stored {
		out = append(out, sp.PlateRecord)
	}
	return out
}

func dateParam(c *gin.Context, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, errors.New(key + " must be YYYY-MM-DD")
	}
	return &t, nil
}

func nameOr(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return defaultUploadName
	}
	return name
}
