package transcription

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// FFmpeg runs ffmpeg to normalize recordings and cut spans out of them.
type FFmpeg struct {
	Binary  string
	TempDir string
}

// NewFFmpeg creates an FFmpeg runner writing into tempDir.
func NewFFmpeg(binary, tempDir string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{Binary: binary, TempDir: tempDir}
}

// Normalize converts any audio file to 16kHz mono WAV. The caller owns the
// returned file.
func (f *FFmpeg) Normalize(ctx context.Context, inputPath string) (string, error) {
	outputPath, err := f.tempPath("normalized")
	if err != nil {
		return "", err
	}
	if err := f.run(ctx, "-i", inputPath,
		"-ar", "16000",      // 16kHz sample rate
		"-ac", "1",          // Mono
		"-c:a", "pcm_s16le", // 16-bit PCM
		"-y",
		outputPath,
	); err != nil {
		os.Remove(outputPath)
		return "", err
	}
	return outputPath, nil
}

// Extract writes [start, end) of inputPath to a new 16kHz mono WAV. The caller
// must remove the returned file once it has been used.
func (f *FFmpeg) Extract(ctx context.Context, inputPath string, start, end float64) (string, error) {
	if err := CheckSpan(start, end, 0); err != nil {
		return "", err
	}
	outputPath, err := f.tempPath("segment")
	if err != nil {
		return "", err
	}
	if err := f.run(ctx,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(end-start),
		"-i", inputPath,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y",
		outputPath,
	); err != nil {
		os.Remove(outputPath)
		return "", err
	}
	return outputPath, nil
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, f.Binary, append([]string{"-hide_banner", "-loglevel", "error"}, args...)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}

func (f *FFmpeg) tempPath(prefix string) (string, error) {
	if err := os.MkdirAll(f.TempDir, 0755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	return filepath.Join(f.TempDir, fmt.Sprintf("%s_%s.wav", prefix, uuid.New().String())), nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

var supportedFormats = []string{".mp3", ".wav", ".m4a", ".ogg", ".flac", ".webm", ".aac", ".wma", ".mp4"}

// ValidateAudioFormat checks if the file format is supported
func ValidateAudioFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
