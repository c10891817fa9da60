package models

// These structs define the JSON payloads exchanged with the HTTP entry points.

// ReportRequest is the JSON input for the report function when the document
// already lives in a bucket instead of being uploaded in the request.
type ReportRequest struct {
	GCSUri string `json:"gcsUri"`
}

// ReportResponse is the output of the report function and the web UI API.
type ReportResponse struct {
	Status       string `json:"status"`
	RunID        string `json:"runId,omitempty"`
	PageCount    int    `json:"pageCount"`
	ChunkCount   int    `json:"chunkCount"`
	FailedPages  int    `json:"failedPages"`
	FailedChunks int    `json:"failedChunks"`
	Report       string `json:"report"`
	DocumentName string `json:"documentName,omitempty"`
}

// ErrorResponse is returned when a run aborts.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}
