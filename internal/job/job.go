// Package job owns conversion jobs: the in-memory registry that tracks them
// and the runner pool that executes them. Job records live only for the
// retention window and do not survive a restart.
package job

import "time"

// State is a job lifecycle state
type State string

// Job states. Pending is initial; Completed and Failed are terminal and
// never left.
const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether the state can no longer change
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// InputFile is one uploaded file in a job's batch, fixed at creation
type InputFile struct {
	OriginalName string
	StoredPath   string
	SizeBytes    int64
}

// FileResult is the per-file outcome, appended in input order by the job's
// runner. DownloadReference is set only on success, Error only on failure.
type FileResult struct {
	OriginalName      string `json:"originalName"`
	ConvertedName     string `json:"convertedName"`
	Success           bool   `json:"success"`
	SizeBytes         int64  `json:"sizeBytes"`
	DownloadReference string `json:"downloadReference,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Job is one batch conversion request
type Job struct {
	ID              string
	Files           []InputFile
	SourceFormat    string
	TargetFormat    string
	State           State
	ProgressPercent int
	Results         []FileResult
	ErrorMessage    string
	CreatedAt       time.Time
}

// snapshot returns a deep copy safe to hand to concurrent readers
func (j *Job) snapshot() Job {
	copied := *j
	copied.Files = append([]InputFile(nil), j.Files...)
	copied.Results = append([]FileResult(nil), j.Results...)
	return copied
}
