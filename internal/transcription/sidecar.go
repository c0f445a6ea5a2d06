package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// SidecarClient talks to a model server exposing /diarize, /embed,
// /transcribe and /health. Spans are cut locally and uploaded as WAV.
type SidecarClient struct {
	baseURL string
	http    *http.Client
	ffmpeg  *FFmpeg
	retries int
	backoff time.Duration
	minSpan float64
	log     zerolog.Logger
}

// SidecarOption customises a SidecarClient.
type SidecarOption func(*SidecarClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) SidecarOption {
	return func(s *SidecarClient) { s.http = c }
}

// WithRetry sets the number of attempts and the backoff unit. Attempt n waits
// n*n units before retrying.
func WithRetry(attempts int, unit time.Duration) SidecarOption {
	return func(s *SidecarClient) {
		if attempts > 0 {
			s.retries = attempts
		}
		s.backoff = unit
	}
}

// WithMinEmbedSpan overrides MinEmbedSpan.
func WithMinEmbedSpan(seconds float64) SidecarOption {
	return func(s *SidecarClient) { s.minSpan = seconds }
}

// NewSidecarClient creates a client for the model server at baseURL.
func NewSidecarClient(baseURL string, ffmpeg *FFmpeg, log zerolog.Logger, opts ...SidecarOption) *SidecarClient {
	s := &SidecarClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Minute},
		ffmpeg:  ffmpeg,
		retries: 3,
		backoff: time.Second,
		minSpan: MinEmbedSpan,
		log:     log.With().Str("component", "sidecar").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type diarizeResponse struct {
	Segments []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Speaker string  `json:"speaker"`
	} `json:"segments"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Health checks that the sidecar is up.
func (s *SidecarClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("sidecar health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sidecar health: %s", resp.Status)
	}
	return nil
}

// Diarize uploads the whole recording and returns raw speaker turns.
func (s *SidecarClient) Diarize(ctx context.Context, audioPath string) ([]types.Segment, error) {
	var out diarizeResponse
	if err := s.postFile(ctx, "/diarize", audioPath, &out); err != nil {
		return nil, err
	}
	segs := make([]types.Segment, 0, len(out.Segments))
	for _, seg := range out.Segments {
		if seg.End <= seg.Start {
			continue
		}
		segs = append(segs, types.NewSegment(seg.Start, seg.End, seg.Speaker))
	}
	return segs, nil
}

// Embed returns the speaker embedding of [start, end).
func (s *SidecarClient) Embed(ctx context.Context, audioPath string, start, end float64) ([]float64, error) {
	if err := CheckSpan(start, end, s.minSpan); err != nil {
		return nil, err
	}
	spanPath, err := s.ffmpeg.Extract(ctx, audioPath, start, end)
	if err != nil {
		return nil, err
	}
	defer os.Remove(spanPath)

	var out embedResponse
	if err := s.postFile(ctx, "/embed", spanPath, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, errors.New("sidecar returned an empty embedding")
	}
	return out.Embedding, nil
}

// EmbedFile returns the speaker embedding of a whole recording, used for
// enrollment clips that contain a single speaker.
func (s *SidecarClient) EmbedFile(ctx context.Context, audioPath string) ([]float64, error) {
	var out embedResponse
	if err := s.postFile(ctx, "/embed", audioPath, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, errors.New("sidecar returned an empty embedding")
	}
	return out.Embedding, nil
}

// Transcribe returns the word-level transcription of [start, end).
func (s *SidecarClient) Transcribe(ctx context.Context, audioPath string, start, end float64) (*SpanTranscription, error) {
	spanPath, err := s.ffmpeg.Extract(ctx, audioPath, start, end)
	if err != nil {
		return nil, err
	}
	defer os.Remove(spanPath)

	var out SpanTranscription
	if err := s.postFile(ctx, "/transcribe", spanPath, &out); err != nil {
		return nil, err
	}
	out.Text = strings.TrimSpace(out.Text)
	return &out, nil
}

// postFile uploads path as multipart field "file" and decodes the JSON reply,
// retrying transport errors and 5xx responses.
func (s *SidecarClient) postFile(ctx context.Context, endpoint, path string, out interface{}) error {
	body, contentType, err := multipartFile(path)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		retryable, err := s.post(ctx, endpoint, body, contentType, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || attempt == s.retries {
			break
		}
		s.log.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempt).Msg("Sidecar request failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*attempt) * s.backoff):
		}
	}
	return lastErr
}

func (s *SidecarClient) post(ctx context.Context, endpoint string, body []byte, contentType string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.http.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("sidecar %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode >= 500, fmt.Errorf("sidecar %s %s: %s", endpoint, resp.Status, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("sidecar %s decode: %w", endpoint, err)
	}
	return false, nil
}

func multipartFile(path string) ([]byte, string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	fd, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer fd.Close()

	if _, err := io.Copy(fw, fd); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return b.Bytes(), w.FormDataContentType(), nil
}
