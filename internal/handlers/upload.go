// Package handlers exposes the HTTP and websocket API.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/queue"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcription"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// Enqueuer accepts jobs for background processing.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, job *queue.Job) error
}

// UploadHandler handles file uploads
type UploadHandler struct {
	queue     Enqueuer
	tempDir   string
	maxSizeMB int
	log       zerolog.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(q Enqueuer, tempDir string, maxSizeMB int, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		queue:     q,
		tempDir:   tempDir,
		maxSizeMB: maxSizeMB,
		log:       log.With().Str("component", "upload").Logger(),
	}
}

// Handle processes the upload request
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "ERR_NO_FILE", "No file uploaded")
	}

	requestName := c.FormValue("name")
	if requestName == "" {
		requestName = "untitled"
	}

	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		return fail(c, fiber.StatusBadRequest, "ERR_FILE_TOO_LARGE", fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB))
	}

	if !transcription.ValidateAudioFormat(file.Filename) {
		return fail(c, fiber.StatusBadRequest, "ERR_INVALID_FORMAT", "Unsupported audio format")
	}

	jobID := uuid.New().String()
	tempPath := filepath.Join(h.tempDir, jobID+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, tempPath); err != nil {
		h.log.Error().Err(err).Msg("Failed to save uploaded file")
		return fail(c, fiber.StatusInternalServerError, "ERR_SAVE_FAILED", "Failed to save file")
	}

	job := queue.NewJob(jobID, requestName, types.SourceUpload, tempPath)
	job.Source = filepath.Base(file.Filename)
	if err := h.queue.EnqueueJob(c.UserContext(), job); err != nil {
		removeQuietly(tempPath)
		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrStopped) {
			return fail(c, fiber.StatusServiceUnavailable, "ERR_QUEUE_FULL", "Server is busy, try again later")
		}
		h.log.Error().Err(err).Msg("Failed to enqueue job")
		return fail(c, fiber.StatusInternalServerError, "ERR_ENQUEUE_FAILED", "Failed to queue job")
	}

	return c.JSON(fiber.Map{
		"job_id":  jobID,
		"status":  types.StatusQueued,
		"message": "File uploaded successfully, processing started",
	})
}
