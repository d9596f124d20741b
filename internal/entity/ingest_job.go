package entity

import (
	"time"

	"github.com/google/uuid"
)

// Ingestion job states.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// IngestJob records one run of the batch image ingestion pipeline.
type IngestJob struct {
	ID          uuid.UUID  `json:"id"`
	BatchNumber int        `json:"batchNumber"`
	Strategy    string     `json:"strategy"`
	Concurrency int        `json:"concurrency"`
	State       string     `json:"state"`
	Total       int        `json:"total"`
	Processed   int        `json:"processed"`
	Successful  int        `json:"successful"`
	Logos       int        `json:"logos"`
	Photos      int        `json:"photos"`
	Errors      []string   `json:"errors"`
	Failure     *string    `json:"failure,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

// Terminal reports whether the job can no longer change state.
func (j IngestJob) Terminal() bool {
	switch j.State {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}
