package dto

// ConvertBatchResponse is returned when an asynchronous batch job starts
type ConvertBatchResponse struct {
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// FileResultDTO is one per-file outcome in a job status response
type FileResultDTO struct {
	OriginalName      string `json:"originalName"`
	ConvertedName     string `json:"convertedName"`
	Success           bool   `json:"success"`
	SizeBytes         int64  `json:"sizeBytes"`
	DownloadReference string `json:"downloadReference,omitempty"`
	Error             string `json:"error,omitempty"`
}

// JobStatusResponse is the status-poll payload
type JobStatusResponse struct {
	JobID           string          `json:"jobId"`
	State           string          `json:"state"`
	ProgressPercent int             `json:"progressPercent"`
	Results         []FileResultDTO `json:"results"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
}

// ConvertSingleResponse is the synchronous conversion payload
type ConvertSingleResponse struct {
	OriginalName      string `json:"originalName"`
	ConvertedName     string `json:"convertedName"`
	SizeBytes         int64  `json:"sizeBytes"`
	DownloadReference string `json:"downloadReference"`
}

// ErrorResponse is the uniform error body
type ErrorResponse struct {
	Error string `json:"error"`
}
