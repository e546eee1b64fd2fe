package importer

import (
	"errors"
	"time"
)

// Job status values. A job is live while running or paused; completed and
// cancelled are terminal.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Per-contact result statuses
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailed  ResultStatus = "failed"
)

var (
	// ErrNoContacts is returned when a start request parses to zero
	// importable contacts
	ErrNoContacts = errors.New("no valid contacts to import")

	// ErrAccountNotFound is returned when the requested account does not
	// exist in the store
	ErrAccountNotFound = errors.New("unknown account")

	// ErrStopped is returned when a job is submitted to an engine that is
	// not running
	ErrStopped = errors.New("import engine is not running")
)

// Contact is one parsed line of import input
type Contact struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Result records the provider's verdict for one submitted contact.
// Index is 1-based and counts submission order; Data carries the raw
// provider response body on success and the error payload on failure.
type Result struct {
	Index  int          `json:"index"`
	Email  string       `json:"email"`
	Status ResultStatus `json:"status"`
	Data   string       `json:"data"`
}

// Job is the full state of one import, newest results first. ElapsedTime
// counts whole seconds and only advances while the job is running.
type Job struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"accountId"`
	ListID        int64     `json:"listId"`
	ListName      string    `json:"listName"`
	Status        Status    `json:"status"`
	Progress      int       `json:"progress"`
	Results       []Result  `json:"results"`
	TotalContacts int       `json:"totalContacts"`
	ElapsedTime   int       `json:"elapsedTime"`
	Delay         float64   `json:"delay"`
	StartedAt     time.Time `json:"startedAt"`
}

// clone copies the job with its own results slice so callers can hold a
// snapshot without racing the loop
func (j *Job) clone() Job {
	c := *j
	c.Results = make([]Result, len(j.Results))
	copy(c.Results, j.Results)
	return c
}

// StartRequest describes one import to run. Delay is the pause in seconds
// between consecutive contacts; zero submits back to back.
type StartRequest struct {
	AccountID string
	ListID    int64
	ListName  string
	Contacts  []Contact
	Delay     float64
}
