package domain

import (
	"errors"
	"time"
)

type JobID string

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobAssigned   JobStatus = "assigned"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further status transition is allowed.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a valid forward
// transition. Transitions never move backwards and terminal states are final.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case JobPending:
		return next == JobAssigned || next == JobFailed || next == JobCancelled
	case JobAssigned:
		return next == JobProcessing || next == JobFailed || next == JobCancelled
	case JobProcessing:
		return next.IsTerminal()
	}
	return false
}

type SourceType string

const (
	SourceStream SourceType = "stream"
	SourceFile   SourceType = "file"
)

// Job is one unit of video work dispatched to one GPU. The orchestrator owns
// the job from submit until terminal status; workers receive a copy.
type Job struct {
	ID          JobID          `json:"id"`
	CameraID    int64          `json:"cameraId"`
	SourceType  SourceType     `json:"sourceType"`
	SourcePath  string         `json:"sourcePath"`
	Priority    int            `json:"priority"`
	Status      JobStatus      `json:"status"`
	GPUID       *int           `json:"gpuId,omitempty"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	AssignedAt  time.Time      `json:"assignedAt,omitzero"`
	CompletedAt time.Time      `json:"completedAt,omitzero"`
}

// Validate checks domain invariants for Job.
func (j Job) Validate() error {
	if j.ID == "" {
		return errors.New("job id is required")
	}
	if j.CameraID <= 0 {
		return errors.New("camera id is required")
	}
	if j.SourceType != SourceStream && j.SourceType != SourceFile {
		return errors.New("invalid source type: " + string(j.SourceType))
	}
	if j.Priority < 0 {
		return errors.New("priority must not be negative")
	}
	switch j.Status {
	case JobPending, JobAssigned, JobProcessing, JobCompleted, JobFailed, JobCancelled:
	case "":
		return errors.New("status is required")
	default:
		return errors.New("invalid status: " + string(j.Status))
	}
	// Active jobs hold a GPU; terminal jobs must have released it.
	if (j.Status == JobAssigned || j.Status == JobProcessing) && j.GPUID == nil {
		return errors.New("assigned job requires a gpu id")
	}
	if j.Status.IsTerminal() && j.GPUID != nil {
		return errors.New("terminal job must not hold a gpu")
	}
	return nil
}

// JobStatusRecord is the durable view of a job's status kept in the queue
// backend with a TTL; it survives coordinator restarts.
type JobStatusRecord struct {
	JobID     JobID          `json:"job_id"`
	Status    JobStatus      `json:"status"`
	GPUID     *int           `json:"gpu_id,omitempty"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}
