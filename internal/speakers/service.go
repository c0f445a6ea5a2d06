// Package speakers manages enrolled voiceprints and promotion of clustered
// unknown samples into named speakers.
package speakers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/cluster"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcription"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/voiceprint"
)

var (
	// ErrNoSamples is returned when a promotion selects no stored samples.
	ErrNoSamples = errors.New("no unknown samples selected")
	// ErrClusterNotFound is returned when a suggestion ID no longer exists.
	ErrClusterNotFound = errors.New("cluster not found")
	// ErrInvalidName is returned for an empty speaker name.
	ErrInvalidName = errors.New("invalid speaker name")
)

// Embedder extracts embeddings for spans and for whole clips.
type Embedder interface {
	transcription.Embedder
	transcription.FileEmbedder
}

// UnknownStore is the persistent accumulator of unidentified samples.
type UnknownStore interface {
	ListUnknown(ctx context.Context) ([]types.UnknownSample, error)
	GetUnknown(ctx context.Context, ids []int64) ([]types.UnknownSample, error)
	DeleteUnknown(ctx context.Context, ids []int64) (int64, error)
}

// ClusterConfig holds the density clustering parameters for suggestions.
type ClusterConfig struct {
	Eps        float64 `yaml:"eps" validate:"gt=0,lt=2"`
	MinSamples int     `yaml:"min_samples" validate:"min=1"`
}

// DefaultClusterConfig returns eps 0.3 and min samples 2.
func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{Eps: cluster.DefaultEps, MinSamples: cluster.DefaultMinSamples}
}

// Span selects part of an enrollment recording.
type Span struct {
	Start float64
	End   float64
}

// Service implements speaker management.
type Service struct {
	store    *voiceprint.Store
	embedder Embedder
	unknowns UnknownStore
	cfg      ClusterConfig
	log      zerolog.Logger
}

// NewService creates a Service.
func NewService(store *voiceprint.Store, embedder Embedder, unknowns UnknownStore, cfg ClusterConfig, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		unknowns: unknowns,
		cfg:      cfg,
		log:      log.With().Str("component", "speakers").Logger(),
	}
}

// Enroll adds one voiceprint sample for name from audioPath. A nil span uses
// the whole recording.
func (s *Service) Enroll(ctx context.Context, name, audioPath string, span *Span) (voiceprint.SpeakerInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return voiceprint.SpeakerInfo{}, ErrInvalidName
	}

	var (
		embedding []float64
		err       error
	)
	if span != nil {
		embedding, err = s.embedder.Embed(ctx, audioPath, span.Start, span.End)
	} else {
		embedding, err = s.embedder.EmbedFile(ctx, audioPath)
	}
	if err != nil {
		return voiceprint.SpeakerInfo{}, fmt.Errorf("extract embedding: %w", err)
	}

	if err := s.store.Enroll(name, embedding); err != nil {
		return voiceprint.SpeakerInfo{}, err
	}
	return voiceprint.SpeakerInfo{Name: name, Samples: len(s.store.Samples(name))}, nil
}

// List returns enrolled speakers.
func (s *Service) List() []voiceprint.SpeakerInfo {
	return s.store.Speakers()
}

// Remove deletes a speaker.
func (s *Service) Remove(name string) error {
	removed, err := s.store.Remove(name)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", voiceprint.ErrSpeakerNotFound, name)
	}
	return nil
}

// Clear deletes every enrolled speaker.
func (s *Service) Clear() error {
	s.log.Warn().Msg("Clearing all voiceprints")
	return s.store.Clear()
}

// Suggestions clusters the accumulated unknown samples. Nothing is modified.
func (s *Service) Suggestions(ctx context.Context) ([]cluster.Suggestion, error) {
	samples, err := s.unknowns.ListUnknown(ctx)
	if err != nil {
		return nil, err
	}
	return cluster.Suggest(samples, s.cfg.Eps, s.cfg.MinSamples)
}

// Promote enrolls the given unknown samples as name and removes exactly
// those rows from the accumulator. It returns the number of samples moved.
func (s *Service) Promote(ctx context.Context, name string, ids []int64) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrInvalidName
	}
	samples, err := s.unknowns.GetUnknown(ctx, ids)
	if err != nil {
		return 0, err
	}
	if len(samples) == 0 {
		return 0, ErrNoSamples
	}

	embeddings := make([][]float64, len(samples))
	found := make([]int64, len(samples))
	for i, sample := range samples {
		embeddings[i] = sample.Embedding
		found[i] = sample.ID
	}
	if err := s.store.EnrollBatch(name, embeddings); err != nil {
		return 0, err
	}
	if _, err := s.unknowns.DeleteUnknown(ctx, found); err != nil {
		return 0, fmt.Errorf("speaker %s enrolled but samples were not removed: %w", name, err)
	}

	s.log.Info().Str("speaker", name).Int("samples", len(samples)).Msg("Promoted unknown cluster")
	return len(samples), nil
}

// PromoteCluster promotes the current suggestion with the given cluster ID.
func (s *Service) PromoteCluster(ctx context.Context, name string, clusterID int) (int, error) {
	suggestions, err := s.Suggestions(ctx)
	if err != nil {
		return 0, err
	}
	for _, sug := range suggestions {
		if sug.ClusterID == clusterID {
			return s.Promote(ctx, name, sug.IDs())
		}
	}
	return 0, fmt.Errorf("%w: %d", ErrClusterNotFound, clusterID)
}
