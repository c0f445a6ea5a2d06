package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAudioFormat(t *testing.T) {
	assert.True(t, ValidateAudioFormat("meeting.WAV"))
	assert.True(t, ValidateAudioFormat("/tmp/call.m4a"))
	assert.False(t, ValidateAudioFormat("notes.txt"))
	assert.False(t, ValidateAudioFormat("noext"))
}

func TestModelName(t *testing.T) {
	assert.Equal(t, "small", ModelName("models/ggml-small.bin"))
	assert.Equal(t, "medium", ModelName("MEDIUM"))
	assert.Equal(t, "small", ModelName(""))
}

func TestCheckSpan(t *testing.T) {
	require.NoError(t, CheckSpan(1, 2, MinEmbedSpan))
	assert.ErrorIs(t, CheckSpan(1, 1.2, MinEmbedSpan), ErrSpanTooShort)
	assert.ErrorIs(t, CheckSpan(2, 1, 0), ErrSpanTooShort)
	assert.ErrorIs(t, CheckSpan(-1, 1, 0), ErrSpanTooShort)
}

func TestParseWhisperJSON(t *testing.T) {
	data := []byte(`{
		"text": " Hello there. How are you?",
		"language": "en",
		"segments": [
			{"id": 0, "start": 0, "end": 2, "text": " Hello there.", "avg_logprob": -0.5,
			 "words": [{"word": " Hello", "start": 0, "end": 0.5, "probability": 0.9},
			           {"word": " there.", "start": 0.6, "end": 1.0, "probability": 0.8}]},
			{"id": 1, "start": 2, "end": 4, "text": " How are you?", "avg_logprob": -1.5,
			 "words": [{"word": " How", "start": 2, "end": 2.2, "probability": 0.7}]}
		]
	}`)
	got, err := ParseWhisperJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "Hello there. How are you?", got.Text)
	require.Len(t, got.Segments, 2)
	assert.Equal(t, "Hello there.", got.Segments[0].Text)
	assert.Equal(t, "Hello", got.Segments[0].Words[0].Text)
	assert.Len(t, got.Words, 3)
	assert.InDelta(t, -1.0, got.AvgLogProb, 1e-9)

	_, err = ParseWhisperJSON([]byte("nope"))
	assert.Error(t, err)
}

func TestSpanTranscriptionParts(t *testing.T) {
	flat := &SpanTranscription{Text: "hi", AvgLogProb: -1, Words: []SpanWord{{Text: "hi"}}}
	parts := flat.Parts()
	require.Len(t, parts, 1)
	assert.Equal(t, "hi", parts[0].Text)
	assert.Equal(t, -1.0, parts[0].AvgLogProb)

	nested := &SpanTranscription{Segments: []SpanSegment{{Text: "a"}, {Text: "b"}}}
	assert.Len(t, nested.Parts(), 2)
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meeting.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0644))
	return path
}

func TestSidecarDiarizeRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/diarize", r.URL.Path)
		_, _, err := r.FormFile("file")
		assert.NoError(t, err)
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"segments": []map[string]interface{}{
				{"start": 0.0, "end": 3.5, "speaker": "SPEAKER_00"},
				{"start": 4.0, "end": 4.0, "speaker": "SPEAKER_01"},
				{"start": 5.0, "end": 9.0, "speaker": "SPEAKER_01"},
			},
		})
	}))
	defer srv.Close()

	client := NewSidecarClient(srv.URL+"/", NewFFmpeg("", t.TempDir()), zerolog.Nop(), WithRetry(3, time.Millisecond))
	segs, err := client.Diarize(context.Background(), writeAudio(t))
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	require.Len(t, segs, 2, "empty turns are dropped")
	assert.Equal(t, "SPEAKER_00", segs[0].Speaker)
	assert.InDelta(t, 3.5, segs[0].Duration, 1e-9)
}

func TestSidecarClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad audio", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewSidecarClient(srv.URL, NewFFmpeg("", t.TempDir()), zerolog.Nop(), WithRetry(3, time.Millisecond))
	_, err := client.Diarize(context.Background(), writeAudio(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad audio")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSidecarEmbedRejectsShortSpan(t *testing.T) {
	client := NewSidecarClient("http://127.0.0.1:0", NewFFmpeg("", t.TempDir()), zerolog.Nop())
	_, err := client.Embed(context.Background(), "meeting.wav", 3, 3.2)
	assert.ErrorIs(t, err, ErrSpanTooShort)
}

func TestSidecarHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	client := NewSidecarClient(srv.URL, NewFFmpeg("", t.TempDir()), zerolog.Nop())
	assert.NoError(t, client.Health(context.Background()))
}

func TestSidecarEmbedFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer srv.Close()

	client := NewSidecarClient(srv.URL, NewFFmpeg("", t.TempDir()), zerolog.Nop())
	emb, err := client.EmbedFile(context.Background(), writeAudio(t))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, emb)
}
