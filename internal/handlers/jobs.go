package handlers

import (
	"context"
	"errors"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/queue"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/storage"
)

// JobLookup finds jobs still tracked in memory.
type JobLookup interface {
	Get(id string) (queue.JobView, bool)
}

// JobRecords reads persisted job rows.
type JobRecords interface {
	GetJob(ctx context.Context, jobID string) (*storage.JobRecord, error)
	ListJobs(ctx context.Context, limit int) ([]storage.JobRecord, error)
}

// JobsHandler serves job status and finished transcripts.
type JobsHandler struct {
	live JobLookup
	db   JobRecords
}

// NewJobsHandler creates a jobs handler. live may be nil.
func NewJobsHandler(live JobLookup, db JobRecords) *JobsHandler {
	return &JobsHandler{live: live, db: db}
}

// Status returns the in-memory view of a job, falling back to its database row
// for jobs from earlier runs.
func (h *JobsHandler) Status(c *fiber.Ctx) error {
	id := c.Params("id")
	if h.live != nil {
		if view, ok := h.live.Get(id); ok {
			view.Result = nil
			return c.JSON(view)
		}
	}
	rec, err := h.db.GetJob(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return fail(c, fiber.StatusNotFound, "ERR_NOT_FOUND", "Job not found")
	}
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "ERR_DB", err.Error())
	}
	return c.JSON(rec)
}

// List returns the most recent jobs.
func (h *JobsHandler) List(c *fiber.Ctx) error {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			return fail(c, fiber.StatusBadRequest, "ERR_BAD_LIMIT", "limit must be between 1 and 500")
		}
		limit = n
	}
	jobs, err := h.db.ListJobs(c.UserContext(), limit)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "ERR_DB", err.Error())
	}
	return c.JSON(jobs)
}

// Text returns the flat transcript of a finished job.
func (h *JobsHandler) Text(c *fiber.Ctx) error {
	return h.sendArtifact(c, func(r *storage.JobRecord) string { return r.LocalPath }, fiber.MIMETextPlainCharsetUTF8)
}

// Hierarchy returns the hierarchical transcript JSON of a finished job.
func (h *JobsHandler) Hierarchy(c *fiber.Ctx) error {
	return h.sendArtifact(c, func(r *storage.JobRecord) string { return r.HierarchyPath }, fiber.MIMEApplicationJSONCharsetUTF8)
}

func (h *JobsHandler) sendArtifact(c *fiber.Ctx, pick func(*storage.JobRecord) string, contentType string) error {
	rec, err := h.db.GetJob(c.UserContext(), c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return fail(c, fiber.StatusNotFound, "ERR_NOT_FOUND", "Transcript not found")
	}
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "ERR_DB", err.Error())
	}

	path := pick(rec)
	if path == "" {
		return fail(c, fiber.StatusNotFound, "ERR_NOT_READY", "Transcript file path not found")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "ERR_READ_FAILED", "Failed to read transcript file")
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(content)
}
