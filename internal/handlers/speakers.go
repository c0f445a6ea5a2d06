package handlers

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/cluster"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/identify"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/speakers"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcription"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/voiceprint"
)

// SpeakerService is the speaker management API.
type SpeakerService interface {
	Enroll(ctx context.Context, name, audioPath string, span *speakers.Span) (voiceprint.SpeakerInfo, error)
	List() []voiceprint.SpeakerInfo
	Remove(name string) error
	Suggestions(ctx context.Context) ([]cluster.Suggestion, error)
	Promote(ctx context.Context, name string, ids []int64) (int, error)
	PromoteCluster(ctx context.Context, name string, clusterID int) (int, error)
}

// SpeakersHandler manages enrolled speakers and unknown-speaker suggestions.
type SpeakersHandler struct {
	svc     SpeakerService
	tempDir string
	log     zerolog.Logger
}

// NewSpeakersHandler creates a speakers handler.
func NewSpeakersHandler(svc SpeakerService, tempDir string, log zerolog.Logger) *SpeakersHandler {
	return &SpeakersHandler{
		svc:     svc,
		tempDir: tempDir,
		log:     log.With().Str("component", "speakers_api").Logger(),
	}
}

// List returns enrolled speakers with their sample counts.
func (h *SpeakersHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"speakers": h.svc.List()})
}

// Enroll adds a voiceprint sample from an uploaded clip. Optional start and end
// form fields select a span of the clip.
func (h *SpeakersHandler) Enroll(c *fiber.Ctx) error {
	name := c.FormValue("name")
	if name == "" {
		return fail(c, fiber.StatusBadRequest, "ERR_NO_NAME", "Speaker name is required")
	}
	file, err := c.FormFile("file")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "ERR_NO_FILE", "No file uploaded")
	}
	if !transcription.ValidateAudioFormat(file.Filename) {
		return fail(c, fiber.StatusBadRequest, "ERR_INVALID_FORMAT", "Unsupported audio format")
	}

	span, err := parseSpan(c.FormValue("start"), c.FormValue("end"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "ERR_BAD_SPAN", err.Error())
	}

	tempPath := filepath.Join(h.tempDir, "enroll_"+uuid.New().String()+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, tempPath); err != nil {
		h.log.Error().Err(err).Msg("Failed to save enrollment clip")
		return fail(c, fiber.StatusInternalServerError, "ERR_SAVE_FAILED", "Failed to save file")
	}
	defer removeQuietly(tempPath)

	info, err := h.svc.Enroll(c.UserContext(), name, tempPath, span)
	if err != nil {
		if errors.Is(err, speakers.ErrInvalidName) || identify.IsDegenerate(err) {
			return fail(c, fiber.StatusUnprocessableEntity, "ERR_ENROLL", err.Error())
		}
		h.log.Error().Err(err).Str("speaker", name).Msg("Enrollment failed")
		return fail(c, fiber.StatusBadGateway, "ERR_ENROLL", err.Error())
	}
	return c.JSON(info)
}

// Remove deletes an enrolled speaker.
func (h *SpeakersHandler) Remove(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := h.svc.Remove(name); err != nil {
		if errors.Is(err, voiceprint.ErrSpeakerNotFound) {
			return fail(c, fiber.StatusNotFound, "ERR_NOT_FOUND", "Speaker not found")
		}
		return fail(c, fiber.StatusInternalServerError, "ERR_REMOVE", err.Error())
	}
	return c.JSON(fiber.Map{"removed": name})
}

// Suggestions clusters the accumulated unknown samples.
func (h *SpeakersHandler) Suggestions(c *fiber.Ctx) error {
	suggestions, err := h.svc.Suggestions(c.UserContext())
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "ERR_CLUSTER", err.Error())
	}
	if suggestions == nil {
		suggestions = []cluster.Suggestion{}
	}
	return c.JSON(fiber.Map{"suggestions": suggestions})
}

// PromoteRequest selects unknown samples to enroll as a new speaker, either by
// sample ID or by the ID of a current suggestion.
type PromoteRequest struct {
	Name      string  `json:"name"`
	SampleIDs []int64 `json:"sample_ids"`
	ClusterID *int    `json:"cluster_id"`
}

// Promote enrolls unknown samples under a name and removes them from the
// accumulator.
func (h *SpeakersHandler) Promote(c *fiber.Ctx) error {
	var req PromoteRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "ERR_BAD_REQUEST", "Invalid request body")
	}
	if req.Name == "" {
		return fail(c, fiber.StatusBadRequest, "ERR_NO_NAME", "Speaker name is required")
	}

	var (
		n   int
		err error
	)
	switch {
	case req.ClusterID != nil:
		n, err = h.svc.PromoteCluster(c.UserContext(), req.Name, *req.ClusterID)
	case len(req.SampleIDs) > 0:
		n, err = h.svc.Promote(c.UserContext(), req.Name, req.SampleIDs)
	default:
		return fail(c, fiber.StatusBadRequest, "ERR_NO_SAMPLES", "sample_ids or cluster_id is required")
	}
	if err != nil {
		switch {
		case errors.Is(err, speakers.ErrNoSamples), errors.Is(err, speakers.ErrClusterNotFound):
			return fail(c, fiber.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		case errors.Is(err, speakers.ErrInvalidName):
			return fail(c, fiber.StatusBadRequest, "ERR_NO_NAME", err.Error())
		}
		return fail(c, fiber.StatusInternalServerError, "ERR_PROMOTE", err.Error())
	}
	return c.JSON(fiber.Map{"speaker": req.Name, "samples": n})
}

func parseSpan(start, end string) (*speakers.Span, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, errors.New("start and end must be given together")
	}
	s, err := strconv.ParseFloat(start, 64)
	if err != nil {
		return nil, errors.New("start is not a number")
	}
	e, err := strconv.ParseFloat(end, 64)
	if err != nil {
		return nil, errors.New("end is not a number")
	}
	if s < 0 || e <= s {
		return nil, errors.New("span must satisfy 0 <= start < end")
	}
	return &speakers.Span{Start: s, End: e}, nil
}
