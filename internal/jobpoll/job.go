// Package jobpoll drives long-running backend jobs (OCR, extraction,
// datacheck runs) by fixed-interval status polling with a bounded attempt
// budget.
package jobpoll

import (
	"encoding/json"
	"sync"
	"time"
)

// Kind identifies what a background job computes.
type Kind string

const (
	KindOCR        Kind = "ocr"
	KindExtraction Kind = "extraction"
	KindDatacheck  Kind = "datacheck"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job tracks the state of a single background job.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Kind     Kind   `json:"kind"`
	Status   Status `json:"status"`
	Attempts int    `json:"attempts"`

	Result json.RawMessage `json:"result,omitempty"`
	Err    string          `json:"error,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is a read-only, JSON-safe copy of job state.
type Snapshot struct {
	ID       string          `json:"job_id"`
	Kind     Kind            `json:"kind"`
	Status   Status          `json:"status"`
	Attempts int             `json:"attempts"`
	Result   json.RawMessage `json:"result,omitempty"`
	Err      string          `json:"error,omitempty"`
	Polling  bool            `json:"polling"`
}

func (j *Job) setStatus(s Status) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = s
	j.UpdatedAt = time.Now()
}

func (j *Job) incrAttempts() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Attempts++
	j.UpdatedAt = time.Now()
	return j.Attempts
}

func (j *Job) resetAttempts() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Attempts = 0
	j.UpdatedAt = time.Now()
}

func (j *Job) complete(result json.RawMessage) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusCompleted
	j.Result = result
	j.UpdatedAt = time.Now()
}

func (j *Job) fail(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusFailed
	j.Err = msg
	j.UpdatedAt = time.Now()
}

func (j *Job) snapshot(polling bool) Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:       j.ID,
		Kind:     j.Kind,
		Status:   j.Status,
		Attempts: j.Attempts,
		Result:   j.Result,
		Err:      j.Err,
		Polling:  polling,
	}
}
