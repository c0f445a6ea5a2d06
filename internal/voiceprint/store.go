// Package voiceprint keeps the persistent mapping of speaker names to
// embedding samples and matches new embeddings against it.
//
// The whole store lives in one JSON file. Every mutation rewrites the file
// through a temp file and rename, so readers never observe a partial write.
// A Store is safe for concurrent use within one process; separate processes
// must not share a file.
package voiceprint

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// ErrSpeakerNotFound is returned when an operation names an unknown speaker.
var ErrSpeakerNotFound = errors.New("speaker not found")

const fileVersion = 1

// Match is the outcome of Identify.
type Match struct {
	Name    string  `json:"name,omitempty"`
	Score   float64 `json:"score"`
	Matched bool    `json:"matched"`
}

// SpeakerInfo describes one enrolled speaker.
type SpeakerInfo struct {
	Name    string `json:"name"`
	Samples int    `json:"samples"`
}

type fileFormat struct {
	Version  int                    `json:"version"`
	Speakers map[string][][]float64 `json:"speakers"`
}

// Store is a file-backed voiceprint database.
type Store struct {
	path     string
	log      zerolog.Logger
	mu       sync.RWMutex
	speakers map[string][][]float64
}

// Open loads the store at path. A missing or unreadable file yields an empty
// store so a first run can bootstrap.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("voiceprint store path is empty")
	}
	s := &Store{
		path:     path,
		log:      log.With().Str("component", "voiceprint").Logger(),
		speakers: make(map[string][][]float64),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.log.Info().Str("path", path).Msg("No voiceprint store yet, starting empty")
		return s, nil
	case err != nil:
		s.log.Warn().Err(err).Str("path", path).Msg("Voiceprint store unreadable, starting empty")
		return s, nil
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("Voiceprint store corrupt, starting empty")
		return s, nil
	}
	for name, samples := range f.Speakers {
		if len(samples) == 0 {
			continue
		}
		s.speakers[name] = samples
	}
	s.log.Info().Int("speakers", len(s.speakers)).Msg("Voiceprint store loaded")
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Enroll appends an embedding to name's samples, creating the speaker if needed.
// Manual enrollment is not bounded by max samples.
func (s *Store) Enroll(name string, embedding []float64) error {
	return s.EnrollBatch(name, [][]float64{embedding})
}

// EnrollBatch appends several embeddings with a single write.
func (s *Store) EnrollBatch(name string, embeddings [][]float64) error {
	if name == "" {
		return errors.New("speaker name is empty")
	}
	if len(embeddings) == 0 {
		return errors.New("no embeddings to enroll")
	}
	for _, e := range embeddings {
		if err := CheckEmbedding(e); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	samples := s.speakers[name]
	for _, e := range embeddings {
		samples = append(samples, cloneVector(e))
	}
	s.speakers[name] = samples
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.log.Info().Str("speaker", name).Int("samples", len(samples)).Msg("Enrolled speaker")
	return nil
}

// Identify scores the embedding against every speaker by mean cosine
// similarity and returns the best one. Matched is set only when the best score
// reaches threshold; the score is reported either way. Scores are within [0, 1].
// Speakers whose samples differ in dimension are skipped; ErrDimensionMismatch
// is returned only when no speaker could be scored.
func (s *Store) Identify(embedding []float64, threshold float64) (Match, error) {
	if err := CheckEmbedding(embedding); err != nil {
		return Match{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.speakers) == 0 {
		return Match{}, nil
	}

	best := Match{}
	scored := 0
	var mismatch error
	for _, name := range s.namesLocked() {
		score, err := MeanSimilarity(embedding, s.speakers[name])
		if errors.Is(err, ErrDimensionMismatch) {
			s.log.Warn().Err(err).Str("speaker", name).Msg("Skipping speaker with mismatched embedding size")
			mismatch = fmt.Errorf("score speaker %q: %w", name, err)
			continue
		}
		if err != nil {
			return Match{}, fmt.Errorf("score speaker %q: %w", name, err)
		}
		scored++
		if score > best.Score {
			best.Name = name
			best.Score = score
		}
	}
	if scored == 0 {
		return Match{}, mismatch
	}
	best.Score = math.Min(best.Score, 1)
	best.Matched = best.Name != "" && best.Score >= threshold
	if !best.Matched {
		best.Name = ""
	}
	return best, nil
}

// UpdateProfile appends a sample after a successful identification and keeps
// only the most recent maxSamples.
func (s *Store) UpdateProfile(name string, embedding []float64, maxSamples int) error {
	if maxSamples < 1 {
		return fmt.Errorf("max samples must be positive, got %d", maxSamples)
	}
	if err := CheckEmbedding(embedding); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	samples, ok := s.speakers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSpeakerNotFound, name)
	}
	samples = append(samples, cloneVector(embedding))
	if len(samples) > maxSamples {
		samples = append([][]float64(nil), samples[len(samples)-maxSamples:]...)
	}
	s.speakers[name] = samples
	return s.saveLocked()
}

// Remove deletes a speaker and reports whether it existed.
func (s *Store) Remove(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.speakers[name]; !ok {
		return false, nil
	}
	delete(s.speakers, name)
	if err := s.saveLocked(); err != nil {
		return true, err
	}
	s.log.Info().Str("speaker", name).Msg("Removed speaker")
	return true, nil
}

// Clear removes every speaker.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.speakers = make(map[string][][]float64)
	return s.saveLocked()
}

// Has reports whether name is enrolled.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.speakers[name]
	return ok
}

// Samples returns a copy of name's embeddings.
func (s *Store) Samples(name string) [][]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := s.speakers[name]
	out := make([][]float64, len(samples))
	for i, e := range samples {
		out[i] = cloneVector(e)
	}
	return out
}

// Speakers lists enrolled speakers sorted by name.
func (s *Store) Speakers() []SpeakerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := s.namesLocked()
	out := make([]SpeakerInfo, 0, len(names))
	for _, name := range names {
		out = append(out, SpeakerInfo{Name: name, Samples: len(s.speakers[name])})
	}
	return out
}

func (s *Store) namesLocked() []string {
	names := make([]string, 0, len(s.speakers))
	for name := range s.speakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// saveLocked rewrites the whole store. Callers hold s.mu.
func (s *Store) saveLocked() error {
	data, err := json.Marshal(fileFormat{Version: fileVersion, Speakers: s.speakers})
	if err != nil {
		return fmt.Errorf("encode voiceprints: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create voiceprint directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".voiceprints-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp voiceprint file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write voiceprints: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync voiceprints: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close voiceprints: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace voiceprint store: %w", err)
	}
	return nil
}

// CheckEmbedding rejects empty and all-zero embeddings with ErrZeroNorm.
func CheckEmbedding(e []float64) error {
	if len(e) == 0 {
		return ErrZeroNorm
	}
	for _, v := range e {
		if v != 0 {
			return nil
		}
	}
	return ErrZeroNorm
}

func cloneVector(v []float64) []float64 {
	return append([]float64(nil), v...)
}
