package transcript

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcription"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// Transcript is the built tree plus the failures that were papered over.
type Transcript struct {
	Segments []types.SpeakerTranscriptSegment
	// Err aggregates per-group transcription failures, nil when none.
	Err error
}

// Warnings flattens Err into messages.
func (t *Transcript) Warnings() []string {
	merr, ok := t.Err.(*multierror.Error)
	if !ok || merr == nil {
		return nil
	}
	out := make([]string, 0, len(merr.Errors))
	for _, err := range merr.Errors {
		out = append(out, err.Error())
	}
	return out
}

// Builder transcribes speaker groups and assembles the transcript tree.
type Builder struct {
	transcriber  transcription.Transcriber
	gapThreshold float64
	log          zerolog.Logger
}

// NewBuilder creates a Builder. A non-positive gapThreshold selects
// DefaultGapThreshold.
func NewBuilder(t transcription.Transcriber, gapThreshold float64, log zerolog.Logger) *Builder {
	if gapThreshold <= 0 {
		gapThreshold = DefaultGapThreshold
	}
	return &Builder{
		transcriber:  t,
		gapThreshold: gapThreshold,
		log:          log.With().Str("component", "transcript").Logger(),
	}
}

// Build groups segments and transcribes each group. A group whose
// transcription fails becomes a placeholder utterance; only context
// cancellation aborts the build.
func (b *Builder) Build(ctx context.Context, audioPath string, segments []types.IdentifiedSegment) (*Transcript, error) {
	groups := GroupBySpeaker(segments, b.gapThreshold)
	out := &Transcript{Segments: make([]types.SpeakerTranscriptSegment, 0, len(groups))}
	var errs *multierror.Error

	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.log.Debug().
			Int("group", i+1).
			Int("groups", len(groups)).
			Str("speaker", g.Speaker).
			Msg("Transcribing speaker group")

		span, err := b.transcriber.Transcribe(ctx, audioPath, g.Start, g.End)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			b.log.Warn().Err(err).Int("group", i+1).Msg("Group transcription failed, inserting placeholder")
			errs = multierror.Append(errs, fmt.Errorf("group %d (%s %.2f-%.2f): %w", i+1, g.Speaker, g.Start, g.End, err))
			out.Segments = append(out.Segments, Placeholder(g, err))
			continue
		}
		out.Segments = append(out.Segments, Align(g, span))
	}

	out.Err = errs.ErrorOrNil()
	return out, nil
}

// Placeholder is the segment emitted for a group that could not be transcribed.
func Placeholder(g Group, cause error) types.SpeakerTranscriptSegment {
	return types.SpeakerTranscriptSegment{
		SpeakerID: g.Speaker,
		Start:     g.Start,
		End:       g.End,
		Utterances: []types.Utterance{{
			Text:  fmt.Sprintf("[transcription failed: %v]", cause),
			Start: g.Start,
			End:   g.End,
			Words: []types.Word{},
		}},
	}
}
