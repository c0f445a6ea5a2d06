// Package identify resolves merged diarization segments to enrolled speakers
// and labels the rest with session-local clusters.
package identify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/cluster"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcription"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/voiceprint"
)

// Embedder extracts a speaker embedding for a span of an audio file.
type Embedder interface {
	Embed(ctx context.Context, audioPath string, start, end float64) ([]float64, error)
}

// Profiles is the part of the voiceprint store the identifier needs.
type Profiles interface {
	Identify(embedding []float64, threshold float64) (voiceprint.Match, error)
	UpdateProfile(name string, embedding []float64, maxSamples int) error
}

// UnknownSink persists embeddings of unidentified segments for later
// cross-session clustering.
type UnknownSink interface {
	AddUnknown(ctx context.Context, sample types.UnknownSample) (int64, error)
}

// Config holds identification thresholds.
type Config struct {
	Threshold        float64 `yaml:"threshold" validate:"gt=0,lte=1"`
	MaxSamples       int     `yaml:"max_samples" validate:"min=1"`
	ClusterThreshold float64 `yaml:"cluster_threshold" validate:"gt=0,lte=1"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{Threshold: 0.7, MaxSamples: 5, ClusterThreshold: 0.75}
}

// SegmentError records why one segment could not be identified.
type SegmentError struct {
	Index int
	Start float64
	End   float64
	Err   error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d [%.2f-%.2f]: %v", e.Index, e.Start, e.End, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

// Session names the recording being identified.
type Session struct {
	ID string
	// Source is stored with unknown samples so they can be traced back to the
	// recording. It defaults to the audio path, which may be a temp file.
	Source string
}

// Report is the outcome of identifying one session.
type Report struct {
	Segments     []types.IdentifiedSegment
	Errors       []*SegmentError
	UnknownCount int
	ClusterCount int
}

// Identifier matches segments against the voiceprint store.
type Identifier struct {
	profiles Profiles
	embedder Embedder
	unknowns UnknownSink
	cfg      Config
	log      zerolog.Logger
}

// New creates an Identifier. unknowns may be nil, in which case unidentified
// embeddings are not persisted.
func New(profiles Profiles, embedder Embedder, unknowns UnknownSink, cfg Config, log zerolog.Logger) *Identifier {
	return &Identifier{
		profiles: profiles,
		embedder: embedder,
		unknowns: unknowns,
		cfg:      cfg,
		log:      log.With().Str("component", "identify").Logger(),
	}
}

// Identify resolves every segment. Per-segment failures never abort the run;
// they leave the segment unidentified and are listed in the report. The
// returned segments keep the input order.
func (id *Identifier) Identify(ctx context.Context, audioPath string, session Session, segments []types.Segment) (*Report, error) {
	if session.Source == "" {
		session.Source = audioPath
	}
	report := &Report{Segments: make([]types.IdentifiedSegment, len(segments))}

	var unknownIdx []int
	var unknownEmb [][]float64

	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out := types.IdentifiedSegment{Segment: seg, OriginalLabel: seg.Speaker}

		embedding, err := id.embedder.Embed(ctx, audioPath, seg.Start, seg.End)
		if err != nil {
			report.Errors = append(report.Errors, &SegmentError{Index: i, Start: seg.Start, End: seg.End, Err: err})
			id.log.Warn().Err(err).Int("segment", i).Msg("Embedding failed, segment left unidentified")
			embedding = nil
		}

		if embedding != nil {
			match, err := id.profiles.Identify(embedding, id.cfg.Threshold)
			if err != nil {
				report.Errors = append(report.Errors, &SegmentError{Index: i, Start: seg.Start, End: seg.End, Err: err})
				id.log.Warn().Err(err).Int("segment", i).Msg("Voiceprint match failed")
				embedding = nil
			} else {
				out.Confidence = match.Score
				if match.Matched {
					out.Speaker = match.Name
					out.Identified = true
					if err := id.profiles.UpdateProfile(match.Name, embedding, id.cfg.MaxSamples); err != nil {
						id.log.Error().Err(err).Str("speaker", match.Name).Msg("Failed to update voiceprint")
					}
					id.log.Debug().
						Str("speaker", match.Name).
						Float64("score", match.Score).
						Float64("start", seg.Start).
						Msg("Segment identified")
				}
			}
		}

		if !out.Identified {
			out.Speaker = cluster.Label(len(unknownIdx))
			unknownIdx = append(unknownIdx, i)
			unknownEmb = append(unknownEmb, embedding)
			if embedding != nil {
				id.recordUnknown(ctx, session, seg, embedding)
			}
		}
		report.Segments[i] = out
	}

	report.UnknownCount = len(unknownIdx)
	if len(unknownIdx) >= 2 {
		clusters := cluster.Greedy(unknownEmb, id.cfg.ClusterThreshold)
		for k, label := range cluster.AssignLabels(len(unknownIdx), clusters) {
			report.Segments[unknownIdx[k]].Speaker = label
		}
		report.ClusterCount = len(clusters)
	}

	id.log.Info().
		Int("segments", len(segments)).
		Int("unknown", report.UnknownCount).
		Int("clusters", report.ClusterCount).
		Int("errors", len(report.Errors)).
		Msg("Speaker identification finished")
	return report, nil
}

func (id *Identifier) recordUnknown(ctx context.Context, session Session, seg types.Segment, embedding []float64) {
	if id.unknowns == nil {
		return
	}
	_, err := id.unknowns.AddUnknown(ctx, types.UnknownSample{
		Embedding: embedding,
		SessionID: session.ID,
		File:      session.Source,
		Start:     seg.Start,
		End:       seg.End,
		CreatedAt: time.Now(),
	})
	if err != nil {
		id.log.Error().Err(err).Float64("start", seg.Start).Msg("Failed to store unknown sample")
	}
}

// IsDegenerate reports whether err stems from unusable input rather than a
// failing collaborator.
func IsDegenerate(err error) bool {
	return errors.Is(err, voiceprint.ErrZeroNorm) ||
		errors.Is(err, voiceprint.ErrDimensionMismatch) ||
		errors.Is(err, transcription.ErrSpanTooShort)
}
