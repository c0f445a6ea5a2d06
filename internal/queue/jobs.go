package queue

import (
	"time"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// Job represents a transcription job
type Job struct {
	ID          string
	RequestName string
	SourceType  string
	SessionID   string
	FilePath    string
	// Source is the durable name of the recording, such as the uploaded file
	// name. FilePath is a temp copy removed after processing.
	Source      string
	Status      string
	Error       error
	Result      *types.TranscriptionResult
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewJob creates a new job with default values. The session ID defaults to
// the job ID.
func NewJob(id, requestName, sourceType, filePath string) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		RequestName: requestName,
		SourceType:  sourceType,
		SessionID:   id,
		FilePath:    filePath,
		Status:      types.StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// JobView is the JSON shape of a job reported to clients.
type JobView struct {
	ID          string                     `json:"job_id"`
	RequestName string                     `json:"request_name"`
	SourceType  string                     `json:"source_type"`
	SessionID   string                     `json:"session_id"`
	Status      string                     `json:"status"`
	Error       string                     `json:"error,omitempty"`
	Result      *types.TranscriptionResult `json:"result,omitempty"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

// View snapshots the job.
func (j *Job) View() JobView {
	v := JobView{
		ID:          j.ID,
		RequestName: j.RequestName,
		SourceType:  j.SourceType,
		SessionID:   j.SessionID,
		Status:      j.Status,
		Result:      j.Result,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	if j.Error != nil {
		v.Error = j.Error.Error()
	}
	return v
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.Status == types.StatusCompleted || j.Status == types.StatusFailed
}
