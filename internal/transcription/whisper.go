package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// WhisperTranscriber wraps Python's OpenAI Whisper for span transcription
type WhisperTranscriber struct {
	ffmpeg    *FFmpeg
	python    string
	modelName string
	language  string
	log       zerolog.Logger
	mu        sync.Mutex // one whisper process at a time
}

// NewWhisperTranscriber creates a transcriber that shells out to
// `python -m whisper`. model may be a bare model name or a path containing one
// (e.g. "ggml-small.bin").
func NewWhisperTranscriber(ffmpeg *FFmpeg, python, model, language string, log zerolog.Logger) *WhisperTranscriber {
	if python == "" {
		python = "python"
	}
	wt := &WhisperTranscriber{
		ffmpeg:    ffmpeg,
		python:    python,
		modelName: ModelName(model),
		language:  language,
		log:       log.With().Str("component", "whisper").Logger(),
	}
	wt.log.Info().Str("model", wt.modelName).Str("python", python).Msg("Whisper transcriber configured, availability is checked on first use")
	return wt
}

// ModelName extracts a whisper model size from a name or path, defaulting to small.
func ModelName(model string) string {
	model = strings.ToLower(model)
	for _, name := range []string{"tiny", "base", "small", "medium", "large"} {
		if strings.Contains(model, name) {
			return name
		}
	}
	return "small"
}

// Transcribe extracts [start, end) and transcribes it with word timestamps.
// Returned times are relative to start.
func (wt *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string, start, end float64) (*SpanTranscription, error) {
	spanPath, err := wt.ffmpeg.Extract(ctx, audioPath, start, end)
	if err != nil {
		return nil, err
	}
	defer os.Remove(spanPath)

	wt.mu.Lock()
	defer wt.mu.Unlock()

	outDir, err := os.MkdirTemp(wt.ffmpeg.TempDir, "whisper-")
	if err != nil {
		return nil, fmt.Errorf("create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := []string{"-m", "whisper",
		spanPath,
		"--model", wt.modelName,
		"--output_dir", outDir,
		"--output_format", "json",
		"--word_timestamps", "True",
		"--fp16", "False", // CPU compatibility
	}
	if wt.language != "" {
		args = append(args, "--language", wt.language)
	}

	cmd := exec.CommandContext(ctx, wt.python, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w\nOutput: %s", err, string(output))
	}

	baseName := strings.TrimSuffix(filepath.Base(spanPath), filepath.Ext(spanPath))
	jsonData, err := os.ReadFile(filepath.Join(outDir, baseName+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}

	result, err := ParseWhisperJSON(jsonData)
	if err != nil {
		return nil, err
	}
	wt.log.Debug().
		Float64("start", start).
		Float64("end", end).
		Int("segments", len(result.Segments)).
		Msg("Span transcribed")
	return result, nil
}

// WhisperOutput matches Python Whisper's JSON output format
type WhisperOutput struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []WhisperSegment `json:"segments"`
}

// WhisperSegment represents a timestamped segment from Whisper
type WhisperSegment struct {
	ID         int        `json:"id"`
	Start      float64    `json:"start"`
	End        float64    `json:"end"`
	Text       string     `json:"text"`
	AvgLogProb float64    `json:"avg_logprob"`
	Words      []SpanWord `json:"words"`
}

// ParseWhisperJSON converts whisper's JSON output into a SpanTranscription.
// The span-level log-probability is the duration-weighted mean of the segments.
func ParseWhisperJSON(data []byte) (*SpanTranscription, error) {
	var out WhisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper JSON: %w", err)
	}

	result := &SpanTranscription{Text: strings.TrimSpace(out.Text)}
	var weighted, total float64
	for _, seg := range out.Segments {
		words := make([]SpanWord, 0, len(seg.Words))
		for _, w := range seg.Words {
			w.Text = strings.TrimSpace(w.Text)
			words = append(words, w)
		}
		result.Segments = append(result.Segments, SpanSegment{
			Text:       strings.TrimSpace(seg.Text),
			AvgLogProb: seg.AvgLogProb,
			Words:      words,
		})
		result.Words = append(result.Words, words...)

		d := seg.End - seg.Start
		if d <= 0 {
			d = 1
		}
		weighted += seg.AvgLogProb * d
		total += d
	}
	if total > 0 {
		result.AvgLogProb = weighted / total
	}
	return result, nil
}
