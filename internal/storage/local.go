package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcript"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// Artifacts are the files written for one transcript.
type Artifacts struct {
	TextPath      string
	HierarchyPath string
	MetaPath      string
}

// LocalStorage handles saving transcripts to the local filesystem
type LocalStorage struct {
	outputDir string
	now       func() time.Time
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(outputDir string) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
		now:       time.Now,
	}
}

// Metadata is the summary written next to every transcript.
type Metadata struct {
	JobID       string                    `json:"job_id"`
	SessionID   string                    `json:"session_id"`
	RequestName string                    `json:"request_name"`
	Duration    float64                   `json:"duration_seconds"`
	WordCount   int                       `json:"word_count"`
	Speakers    []types.SpeakerSummary    `json:"speakers"`
	Segments    []types.IdentifiedSegment `json:"segments"`
	Warnings    []string                  `json:"warnings,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
	LocalPath   string                    `json:"local_path"`
	GDriveURL   string                    `json:"gdrive_url,omitempty"`
}

// NewMetadata builds the metadata document for a result.
func NewMetadata(requestName string, result *types.TranscriptionResult) Metadata {
	return Metadata{
		JobID:       result.JobID,
		SessionID:   result.SessionID,
		RequestName: requestName,
		Duration:    result.Duration,
		WordCount:   result.WordCount,
		Speakers:    result.Speakers,
		Segments:    result.Segments,
		Warnings:    result.Warnings,
		CreatedAt:   result.ProcessedAt,
		LocalPath:   result.LocalPath,
		GDriveURL:   result.GDriveURL,
	}
}

// SaveTranscript writes the flat transcript, the hierarchical JSON and the
// metadata under outputs/YYYY/MM/DD/.
func (ls *LocalStorage) SaveTranscript(requestName string, result *types.TranscriptionResult) (Artifacts, error) {
	now := ls.now()
	dateDir := filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return Artifacts{}, fmt.Errorf("failed to create date directory: %w", err)
	}

	// 20250123_143022_weekly_sync
	base := filepath.Join(dateDir, fmt.Sprintf("%s_%s", now.Format("20060102_150405"), sanitizeFilename(requestName)))
	art := Artifacts{
		TextPath:      base + ".txt",
		HierarchyPath: base + "_hierarchy.json",
		MetaPath:      base + "_meta.json",
	}

	if err := os.WriteFile(art.TextPath, []byte(result.Text), 0644); err != nil {
		return Artifacts{}, fmt.Errorf("failed to save transcript: %w", err)
	}

	doc, err := transcript.MarshalDocument(result.Tree)
	if err != nil {
		return Artifacts{}, fmt.Errorf("failed to marshal hierarchy: %w", err)
	}
	if err := os.WriteFile(art.HierarchyPath, doc, 0644); err != nil {
		return Artifacts{}, fmt.Errorf("failed to save hierarchy: %w", err)
	}

	meta := NewMetadata(requestName, result)
	meta.LocalPath = art.TextPath
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Artifacts{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(art.MetaPath, metaJSON, 0644); err != nil {
		return Artifacts{}, fmt.Errorf("failed to save metadata: %w", err)
	}

	return art, nil
}

var filenameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
)

// sanitizeFilename removes invalid characters from filename
func sanitizeFilename(name string) string {
	result := strings.Trim(filenameReplacer.Replace(strings.TrimSpace(name)), "._")
	if result == "" {
		result = "recording"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
