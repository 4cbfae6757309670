package cqa

import (
	"encoding/json"
	"strings"

	"cqa-workers/internal/common/errors"
)

// JobKind distinguishes the two long-running remote operations.
type JobKind string

const (
	// JobFetch exports the knowledge base from the service.
	JobFetch JobKind = "fetch"
	// JobUpload imports a revised knowledge base into the service.
	JobUpload JobKind = "upload"
)

type JobState int

const (
	JobPending JobState = iota
	JobSucceeded
	JobFailed
	JobTimedOut
)

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	case JobTimedOut:
		return "timed-out"
	}
	return "unknown"
}

// JobStatus is the body of a status poll.
type JobStatus struct {
	JobID     string            `json:"jobId,omitempty"`
	Status    string            `json:"status"`
	Errors    []json.RawMessage `json:"errors,omitempty"`
	ResultURL string            `json:"resultUrl,omitempty"`
	CreatedAt string            `json:"createdDateTime,omitempty"`
	UpdatedAt string            `json:"lastUpdatedDateTime,omitempty"`
}

var (
	fatalStatuses      = map[string]bool{"cancelled": true, "cancelling": true, "failed": true}
	inProgressStatuses = map[string]bool{"notStarted": true, "partiallyCompleted": true, "running": true}
)

// Job tracks one remote operation from initiation to a terminal state.
type Job struct {
	Kind        JobKind
	Location    string
	MaxAttempts int

	state    JobState
	attempts int
	last     JobStatus
	err      error
}

func NewJob(kind JobKind, location string, maxAttempts int) *Job {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Job{Kind: kind, Location: location, MaxAttempts: maxAttempts}
}

// Observe feeds one poll response into the job and returns the resulting state. Terminal
// states are sticky.
func (j *Job) Observe(st JobStatus) JobState {
	if j.state != JobPending {
		return j.state
	}

	j.attempts++
	j.last = st

	switch {
	case len(st.Errors) > 0:
		j.fail(errors.NewJobFailedError(j.phase(), st.Status, "errors: "+joinRaw(st.Errors)))
	case fatalStatuses[st.Status]:
		j.fail(errors.NewJobFailedError(j.phase(), st.Status, ""))
	case j.succeeded(st):
		j.state = JobSucceeded
	case j.attempts >= j.MaxAttempts:
		j.state = JobTimedOut
		j.err = errors.NewJobTimeoutError(j.phase(), j.attempts, st.Status)
	}
	return j.state
}

// A fetch is done once the result is downloadable. An upload is done on any status outside
// the in-progress set; an empty status is still pending.
func (j *Job) succeeded(st JobStatus) bool {
	if j.Kind == JobFetch {
		return st.ResultURL != ""
	}
	return st.Status != "" && !inProgressStatuses[st.Status]
}

func (j *Job) fail(err error) {
	j.state = JobFailed
	j.err = err
}

func (j *Job) phase() string {
	if j.Kind == JobFetch {
		return errors.PhaseImport
	}
	return errors.PhaseExport
}

func (j *Job) State() JobState { return j.state }
func (j *Job) Attempts() int   { return j.attempts }
func (j *Job) Last() JobStatus { return j.last }
func (j *Job) Err() error      { return j.err }

func (j *Job) noun() string {
	if j.Kind == JobFetch {
		return "Download"
	}
	return "Upload"
}

func joinRaw(items []json.RawMessage) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = string(item)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
