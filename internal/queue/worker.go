package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/storage"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

var (
	// ErrQueueFull is returned when the job buffer has no room.
	ErrQueueFull = errors.New("job queue is full")
	// ErrStopped is returned when enqueueing into a stopped pool.
	ErrStopped = errors.New("worker pool stopped")
)

// Processor runs the transcription pipeline on one recording.
type Processor interface {
	Process(ctx context.Context, audioPath, source, sessionID string) (*types.TranscriptionResult, error)
}

// JobStore persists job rows.
type JobStore interface {
	CreateJob(ctx context.Context, rec storage.JobRecord) error
	UpdateJobStatus(ctx context.Context, jobID, status, errMsg string) error
	CompleteJob(ctx context.Context, rec storage.JobRecord) error
}

// Saver writes transcript artifacts locally.
type Saver interface {
	SaveTranscript(requestName string, result *types.TranscriptionResult) (storage.Artifacts, error)
}

// Exporter uploads finished transcripts, e.g. to Google Drive.
type Exporter interface {
	Upload(ctx context.Context, requestName string, result *types.TranscriptionResult) (string, error)
}

// Options tune a WorkerPool.
type Options struct {
	Workers        int
	QueueSize      int
	UploadAttempts int
	// RetryUnit is the backoff base: attempt n waits n*n units.
	RetryUnit time.Duration
}

// WorkerPool manages a pool of workers processing transcription jobs
type WorkerPool struct {
	jobQueue  chan *Job
	opts      Options
	processor Processor
	saver     Saver
	exporter  Exporter
	db        JobStore
	hub       *StatusHub
	log       zerolog.Logger

	mu      sync.Mutex
	jobs    map[string]*Job
	stopped bool
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. exporter, db and hub may be nil.
func NewWorkerPool(
	opts Options,
	processor Processor,
	saver Saver,
	exporter Exporter,
	db JobStore,
	hub *StatusHub,
	log zerolog.Logger,
) *WorkerPool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.UploadAttempts <= 0 {
		opts.UploadAttempts = 3
	}
	return &WorkerPool{
		jobQueue:  make(chan *Job, opts.QueueSize),
		opts:      opts,
		processor: processor,
		saver:     saver,
		exporter:  exporter,
		db:        db,
		hub:       hub,
		log:       log.With().Str("component", "worker_pool").Logger(),
		jobs:      make(map[string]*Job),
	}
}

// Start initializes all workers. They stop when ctx is cancelled or Stop is
// called.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.log.Info().Int("workers", wp.opts.Workers).Msg("Starting worker pool")
	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.wg.Wait()
	wp.log.Info().Msg("Worker pool stopped")
}

// EnqueueJob records the job and adds it to the queue without blocking.
func (wp *WorkerPool) EnqueueJob(ctx context.Context, job *Job) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped {
		return ErrStopped
	}

	now := time.Now()
	job.Status = types.StatusQueued
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.SessionID == "" {
		job.SessionID = job.ID
	}

	select {
	case wp.jobQueue <- job:
	default:
		return ErrQueueFull
	}
	wp.jobs[job.ID] = job

	if wp.db != nil {
		err := wp.db.CreateJob(ctx, storage.JobRecord{
			JobID:       job.ID,
			RequestName: job.RequestName,
			SourceType:  job.SourceType,
			SessionID:   job.SessionID,
			Status:      job.Status,
			CreatedAt:   job.CreatedAt,
		})
		if err != nil {
			wp.log.Error().Err(err).Str("job", job.ID).Msg("Failed to record job")
		}
	}
	wp.publishLocked(job)

	wp.log.Info().
		Str("job", job.ID).
		Str("source", job.SourceType).
		Str("name", job.RequestName).
		Msg("Job enqueued")
	return nil
}

// Get returns a snapshot of a job seen by this pool.
func (wp *WorkerPool) Get(id string) (JobView, bool) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	job, ok := wp.jobs[id]
	if !ok {
		return JobView{}, false
	}
	return job.View(), true
}

// Hub returns the status hub, which may be nil.
func (wp *WorkerPool) Hub() *StatusHub { return wp.hub }

// worker processes jobs from the queue
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log := wp.log.With().Int("worker", id).Logger()
	log.Debug().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-wp.jobQueue:
			if !ok {
				return
			}
			wp.runJob(ctx, log, job)
		}
	}
}

func (wp *WorkerPool) runJob(ctx context.Context, log zerolog.Logger, job *Job) {
	defer wp.cleanupTempFile(job.FilePath)
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("job", job.ID).
				Str("stack", string(debug.Stack())).
				Msgf("PANIC processing job: %v", r)
			wp.fail(ctx, job, fmt.Errorf("worker panic: %v", r))
		}
	}()

	wp.processJob(ctx, log, job)
}

// processJob handles the complete transcription pipeline
func (wp *WorkerPool) processJob(ctx context.Context, log zerolog.Logger, job *Job) {
	log = log.With().Str("job", job.ID).Logger()
	log.Info().Msg("Processing job")
	wp.setStatus(ctx, job, types.StatusProcessing)

	// Step 1: diarize, identify and transcribe
	result, err := wp.processor.Process(ctx, job.FilePath, job.Source, job.SessionID)
	if err != nil {
		log.Error().Err(err).Msg("Processing failed")
		wp.fail(ctx, job, fmt.Errorf("processing failed: %w", err))
		return
	}
	result.JobID = job.ID

	// Step 2: save locally
	artifacts, err := wp.saver.SaveTranscript(job.RequestName, result)
	if err != nil {
		log.Error().Err(err).Msg("Local save failed")
		wp.fail(ctx, job, fmt.Errorf("local save failed: %w", err))
		return
	}
	result.LocalPath = artifacts.TextPath

	// Step 3: export (with retry)
	if wp.exporter != nil {
		result.GDriveURL = wp.export(ctx, log, job, result)
	}

	// Step 4: record outputs
	if wp.db != nil {
		err := wp.db.CompleteJob(ctx, storage.JobRecord{
			JobID:         job.ID,
			Status:        types.StatusCompleted,
			LocalPath:     artifacts.TextPath,
			HierarchyPath: artifacts.HierarchyPath,
			GDriveURL:     result.GDriveURL,
			Duration:      result.Duration,
			WordCount:     result.WordCount,
			SpeakerCount:  len(result.Speakers),
		})
		if err != nil {
			log.Error().Err(err).Msg("Database save failed")
		}
	}

	wp.mu.Lock()
	job.Result = result
	job.Status = types.StatusCompleted
	job.UpdatedAt = time.Now()
	wp.publishLocked(job)
	wp.mu.Unlock()

	log.Info().
		Str("local", result.LocalPath).
		Str("gdrive", result.GDriveURL).
		Int("warnings", len(result.Warnings)).
		Msg("Job completed")
}

func (wp *WorkerPool) export(ctx context.Context, log zerolog.Logger, job *Job, result *types.TranscriptionResult) string {
	attempts := wp.opts.UploadAttempts
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var url string
		url, err = wp.exporter.Upload(ctx, job.RequestName, result)
		if err == nil {
			return url
		}
		log.Warn().Err(err).Msgf("Upload attempt %d/%d failed", attempt, attempts)
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ""
			case <-time.After(time.Duration(attempt*attempt) * wp.opts.RetryUnit):
			}
		}
	}
	log.Warn().Err(err).Msg("Upload failed after all attempts, keeping local copy only")
	return ""
}

func (wp *WorkerPool) setStatus(ctx context.Context, job *Job, status string) {
	if wp.db != nil {
		if err := wp.db.UpdateJobStatus(ctx, job.ID, status, ""); err != nil {
			wp.log.Error().Err(err).Str("job", job.ID).Msg("Failed to update job status")
		}
	}

	wp.mu.Lock()
	job.Status = status
	job.UpdatedAt = time.Now()
	wp.publishLocked(job)
	wp.mu.Unlock()
}

func (wp *WorkerPool) fail(ctx context.Context, job *Job, cause error) {
	if wp.db != nil {
		// the job context may already be cancelled
		if err := wp.db.UpdateJobStatus(context.WithoutCancel(ctx), job.ID, types.StatusFailed, cause.Error()); err != nil {
			wp.log.Error().Err(err).Str("job", job.ID).Msg("Failed to record job failure")
		}
	}

	wp.mu.Lock()
	job.Status = types.StatusFailed
	job.Error = cause
	job.UpdatedAt = time.Now()
	wp.publishLocked(job)
	wp.mu.Unlock()
}

func (wp *WorkerPool) publishLocked(job *Job) {
	if wp.hub == nil {
		return
	}
	ev := Event{
		JobID:       job.ID,
		RequestName: job.RequestName,
		Status:      job.Status,
		Time:        job.UpdatedAt,
	}
	if job.Error != nil {
		ev.Error = job.Error.Error()
	}
	if job.Result != nil {
		ev.LocalPath = job.Result.LocalPath
		ev.GDriveURL = job.Result.GDriveURL
	}
	wp.hub.Publish(ev)
}

// cleanupTempFile removes a temporary file
func (wp *WorkerPool) cleanupTempFile(filePath string) {
	if filePath == "" {
		return
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		wp.log.Warn().Err(err).Str("path", filePath).Msg("Failed to cleanup temp file")
	}
}
