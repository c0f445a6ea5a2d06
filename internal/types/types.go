package types

import "time"

// Job status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Source type constants
const (
	SourceUpload = "upload"
	SourceCLI    = "cli"
)

// Segment is a speaker-attributed time span in seconds.
type Segment struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Speaker  string  `json:"speaker"`
	Duration float64 `json:"duration"`
}

// NewSegment builds a segment with its duration filled in.
func NewSegment(start, end float64, speaker string) Segment {
	return Segment{Start: start, End: end, Speaker: speaker, Duration: end - start}
}

// IdentifiedSegment is a merged segment after matching against the voiceprint store.
// Speaker holds the resolved speaker: the enrolled name when Identified,
// otherwise a SPEAKER_NN label assigned by clustering.
type IdentifiedSegment struct {
	Segment
	OriginalLabel string  `json:"original_label"`
	Confidence    float64 `json:"confidence"`
	Identified    bool    `json:"identified"`
}

// UnknownSample is an embedding from a segment that failed identification.
type UnknownSample struct {
	ID        int64     `json:"id"`
	Embedding []float64 `json:"embedding"`
	SessionID string    `json:"session_id"`
	File      string    `json:"file"`
	Start     float64   `json:"start"`
	End       float64   `json:"end"`
	CreatedAt time.Time `json:"created_at"`
}

// Word is a single transcribed token with absolute timestamps.
type Word struct {
	Text       string  `json:"text"`
	Start      float64 `json:"startTimestamp"`
	End        float64 `json:"endTimestamp"`
	Confidence float64 `json:"confidence"`
}

// Utterance is one sentence of a speaker segment.
// Drift is reserved for skew correction and is always 0.
type Utterance struct {
	Text       string  `json:"text"`
	Start      float64 `json:"startTimestamp"`
	End        float64 `json:"endTimestamp"`
	Confidence float64 `json:"confidence"`
	Drift      float64 `json:"drift"`
	Words      []Word  `json:"words"`
}

// SpeakerTranscriptSegment groups the utterances of one speaker-continuous stretch.
type SpeakerTranscriptSegment struct {
	SpeakerID  string      `json:"speakerTagId"`
	Start      float64     `json:"startTimestamp"`
	End        float64     `json:"endTimestamp"`
	Utterances []Utterance `json:"utterances"`
}

// SpeakerSummary rolls up the segments attributed to one resolved speaker.
type SpeakerSummary struct {
	ID            string  `json:"id"`
	Identified    bool    `json:"identified"`
	TotalDuration float64 `json:"total_duration"`
	SegmentCount  int     `json:"segment_count"`
	Confidence    float64 `json:"confidence"`
}

// TranscriptionResult is the full output of processing one audio file
type TranscriptionResult struct {
	JobID       string                     `json:"job_id"`
	SessionID   string                     `json:"session_id"`
	Segments    []IdentifiedSegment        `json:"segments"`
	Tree        []SpeakerTranscriptSegment `json:"tree"`
	Text        string                     `json:"text"`
	Speakers    []SpeakerSummary           `json:"speakers"`
	Warnings    []string                   `json:"warnings,omitempty"`
	Duration    float64                    `json:"duration"`
	WordCount   int                        `json:"word_count"`
	ProcessedAt time.Time                  `json:"processed_at"`
	LocalPath   string                     `json:"local_path,omitempty"`
	GDriveURL   string                     `json:"gdrive_url,omitempty"`
}
