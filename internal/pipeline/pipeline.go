// Package pipeline runs one recording through diarization, merging, speaker
// identification and hierarchical transcription.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/identify"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/segments"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcript"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcription"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

var (
	// ErrNoSpeech is returned when no segment survives merging.
	ErrNoSpeech = errors.New("no speech segments found")
	// ErrInvalidConfig wraps every configuration failure.
	ErrInvalidConfig = errors.New("invalid pipeline configuration")
)

// Config tunes every stage of the pipeline.
type Config struct {
	Normalize     bool
	TurnPolicy    segments.Policy
	SegmentPolicy segments.Policy
	Identify      identify.Config
	GapThreshold  float64 `validate:"gt=0"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		Normalize:     true,
		TurnPolicy:    segments.TurnPolicy(0.5, 2.0),
		SegmentPolicy: segments.ShortSegmentPolicy(1.0, 3.0),
		Identify:      identify.DefaultConfig(),
		GapThreshold:  transcript.DefaultGapThreshold,
	}
}

// Validate checks thresholds before any inference work is spent.
func (c Config) Validate() error {
	if err := c.TurnPolicy.Validate(); err != nil {
		return fmt.Errorf("%w: turn policy: %v", ErrInvalidConfig, err)
	}
	if err := c.SegmentPolicy.Validate(); err != nil {
		return fmt.Errorf("%w: segment policy: %v", ErrInvalidConfig, err)
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// AudioPreparer converts a recording into the format the models expect.
type AudioPreparer interface {
	Normalize(ctx context.Context, inputPath string) (string, error)
}

// Deps are the collaborators of a Pipeline. Preparer and Unknowns are optional.
type Deps struct {
	Diarizer    transcription.Diarizer
	Embedder    transcription.Embedder
	Transcriber transcription.Transcriber
	Profiles    identify.Profiles
	Unknowns    identify.UnknownSink
	Preparer    AudioPreparer
	Logger      zerolog.Logger
}

// Pipeline processes recordings. It is safe for concurrent use when its
// collaborators are.
type Pipeline struct {
	cfg        Config
	deps       Deps
	identifier *identify.Identifier
	builder    *transcript.Builder
	log        zerolog.Logger
}

// New validates cfg and wires the stages together.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Diarizer == nil:
		return nil, fmt.Errorf("%w: diarizer is required", ErrInvalidConfig)
	case deps.Embedder == nil:
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	case deps.Transcriber == nil:
		return nil, fmt.Errorf("%w: transcriber is required", ErrInvalidConfig)
	case deps.Profiles == nil:
		return nil, fmt.Errorf("%w: voiceprint store is required", ErrInvalidConfig)
	}

	return &Pipeline{
		cfg:        cfg,
		deps:       deps,
		identifier: identify.New(deps.Profiles, deps.Embedder, deps.Unknowns, cfg.Identify, deps.Logger),
		builder:    transcript.NewBuilder(deps.Transcriber, cfg.GapThreshold, deps.Logger),
		log:        deps.Logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// Process turns one recording into an identified, hierarchical transcript.
// source is the durable reference recorded with unknown speaker samples; an
// empty source falls back to audioPath.
func (p *Pipeline) Process(ctx context.Context, audioPath, source, sessionID string) (*types.TranscriptionResult, error) {
	if source == "" {
		source = audioPath
	}
	start := time.Now()
	log := p.log.With().Str("session", sessionID).Logger()

	audio := audioPath
	if p.cfg.Normalize && p.deps.Preparer != nil {
		normalized, err := p.deps.Preparer.Normalize(ctx, audioPath)
		if err != nil {
			return nil, fmt.Errorf("normalize audio: %w", err)
		}
		defer os.Remove(normalized)
		audio = normalized
	}

	log.Info().Str("file", audioPath).Msg("Diarizing")
	turns, err := p.deps.Diarizer.Diarize(ctx, audio)
	if err != nil {
		return nil, fmt.Errorf("diarize: %w", err)
	}
	merged := segments.Merge(segments.Merge(turns, p.cfg.TurnPolicy), p.cfg.SegmentPolicy)
	if len(merged) == 0 {
		return nil, ErrNoSpeech
	}
	log.Info().Int("turns", len(turns)).Int("segments", len(merged)).Msg("Merged speaker turns")

	report, err := p.identifier.Identify(ctx, audio, identify.Session{ID: sessionID, Source: source}, merged)
	if err != nil {
		return nil, fmt.Errorf("identify speakers: %w", err)
	}

	tree, err := p.builder.Build(ctx, audio, report.Segments)
	if err != nil {
		return nil, fmt.Errorf("build transcript: %w", err)
	}

	result := &types.TranscriptionResult{
		SessionID:   sessionID,
		Segments:    report.Segments,
		Tree:        tree.Segments,
		Text:        transcript.Render(tree.Segments),
		Speakers:    Summarize(report.Segments),
		WordCount:   transcript.WordCount(tree.Segments),
		ProcessedAt: time.Now(),
	}
	for _, segErr := range report.Errors {
		result.Warnings = append(result.Warnings, segErr.Error())
	}
	result.Warnings = append(result.Warnings, tree.Warnings()...)
	for _, s := range merged {
		if s.End > result.Duration {
			result.Duration = s.End
		}
	}

	log.Info().
		Int("speakers", len(result.Speakers)).
		Int("words", result.WordCount).
		Int("warnings", len(result.Warnings)).
		Dur("elapsed", time.Since(start)).
		Msg("Recording processed")
	return result, nil
}

// Summarize rolls segments up per resolved speaker, in order of first
// appearance.
func Summarize(segs []types.IdentifiedSegment) []types.SpeakerSummary {
	index := make(map[string]int)
	var out []types.SpeakerSummary
	for _, s := range segs {
		i, ok := index[s.Speaker]
		if !ok {
			i = len(out)
			index[s.Speaker] = i
			out = append(out, types.SpeakerSummary{ID: s.Speaker, Identified: s.Identified})
		}
		sum := &out[i]
		sum.TotalDuration += s.Duration
		sum.Confidence += s.Confidence
		sum.SegmentCount++
	}
	for i := range out {
		out[i].Confidence /= float64(out[i].SegmentCount)
	}
	return out
}
