// Package cleanup removes stale temp files left by interrupted jobs.
package cleanup

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Report summarises one sweep.
type Report struct {
	Deleted int
	Bytes   int64
}

// Scheduler handles cleanup of temporary files
type Scheduler struct {
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
	log      zerolog.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(tempDir string, intervalMinutes, maxAgeHours int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		tempDir:  tempDir,
		interval: time.Duration(intervalMinutes) * time.Minute,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		now:      time.Now,
		log:      log.With().Str("component", "cleanup").Logger(),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately and then every interval until Stop.
func (s *Scheduler) Start() {
	s.log.Info().Msg("Running initial temp file cleanup")
	s.Sweep()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopChan:
				return
			}
		}
	}()

	s.log.Info().
		Dur("interval", s.interval).
		Dur("max_age", s.maxAge).
		Msg("Cleanup scheduler started")
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		<-s.done
		s.log.Info().Msg("Cleanup scheduler stopped")
	})
}

// Sweep removes files older than the maximum age from the temp directory.
func (s *Scheduler) Sweep() Report {
	now := s.now()
	var rep Report

	err := filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			return nil
		}
		if err := os.Remove(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("Failed to delete old file")
			return nil
		}
		rep.Deleted++
		rep.Bytes += info.Size()
		s.log.Debug().
			Str("file", filepath.Base(path)).
			Dur("age", age.Round(time.Hour)).
			Int64("size_kb", info.Size()/1024).
			Msg("Deleted old temp file")
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Error during cleanup")
	}

	if rep.Deleted > 0 {
		s.log.Info().
			Int("files", rep.Deleted).
			Float64("freed_mb", float64(rep.Bytes)/(1024*1024)).
			Msg("Cleanup complete")
	}
	return rep
}

// EnsureDirs creates every directory in dirs.
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
