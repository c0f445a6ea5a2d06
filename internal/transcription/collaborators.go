package transcription

import (
	"context"
	"errors"
	"fmt"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// MinEmbedSpan is the shortest span, in seconds, the embedding model accepts.
const MinEmbedSpan = 0.5

// ErrSpanTooShort is returned when a requested span is shorter than the model's
// minimum context or not a valid interval.
var ErrSpanTooShort = errors.New("audio span too short")

// Diarizer detects raw speaker turns. The result is not required to be sorted.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]types.Segment, error)
}

// Embedder extracts a fixed-length speaker embedding for a span.
type Embedder interface {
	Embed(ctx context.Context, audioPath string, start, end float64) ([]float64, error)
}

// FileEmbedder extracts one embedding for a whole single-speaker recording.
type FileEmbedder interface {
	EmbedFile(ctx context.Context, audioPath string) ([]float64, error)
}

// Transcriber transcribes a span with word-level timing.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, start, end float64) (*SpanTranscription, error)
}

// SpanWord is one recognised word. Times are relative to the span start.
type SpanWord struct {
	Text        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

// SpanSegment is one decoder segment within a span, with its own
// average log-probability.
type SpanSegment struct {
	Text       string     `json:"text"`
	AvgLogProb float64    `json:"avg_logprob"`
	Words      []SpanWord `json:"words"`
}

// SpanTranscription is the transcription of one span. Segments is optional;
// when empty the span is treated as a single segment built from Text,
// AvgLogProb and Words.
type SpanTranscription struct {
	Text       string        `json:"text"`
	AvgLogProb float64       `json:"avg_logprob"`
	Words      []SpanWord    `json:"words"`
	Segments   []SpanSegment `json:"segments,omitempty"`
}

// Parts returns the decoder segments of the span.
func (t *SpanTranscription) Parts() []SpanSegment {
	if len(t.Segments) > 0 {
		return t.Segments
	}
	return []SpanSegment{{Text: t.Text, AvgLogProb: t.AvgLogProb, Words: t.Words}}
}

// CheckSpan validates a span request against a minimum length.
func CheckSpan(start, end, min float64) error {
	if start < 0 || end <= start {
		return fmt.Errorf("%w: [%.2f, %.2f] is not a valid span", ErrSpanTooShort, start, end)
	}
	if end-start < min {
		return fmt.Errorf("%w: %.2fs < %.2fs", ErrSpanTooShort, end-start, min)
	}
	return nil
}
