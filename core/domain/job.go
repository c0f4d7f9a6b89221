package domain

import "time"

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job is a long-running operation (full re-sync, bulk move, crawl) wrapped
// in a durable record so a process restart can resume from ResumeCheckpoint
// rather than restart from scratch.
type Job struct {
	ID          string    `json:"job_id"`
	Instruction string    `json:"instruction"`
	Status      JobStatus `json:"status"`

	ResumeCheckpoint []byte `json:"resume_checkpoint,omitempty"` // opaque JSON

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	Result []byte `json:"result,omitempty"` // opaque JSON, terminal success payload
	Error  string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the job has reached a final status.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// PastRetention reports whether a completed job is older than the retention
// window and eligible to be reaped.
func (j *Job) PastRetention(window time.Duration) bool {
	if j.CompletedAt == nil {
		return false
	}
	return time.Since(*j.CompletedAt) > window
}
