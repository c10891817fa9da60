package models

import "time"

// Run statuses recorded in the ledger as the pipeline advances.
const (
	StatusExtracting     = "EXTRACTING"
	StatusTranslating    = "TRANSLATING"
	StatusAuthenticating = "AUTHENTICATING"
	StatusGenerating     = "GENERATING"
	StatusConverting     = "CONVERTING"
	StatusComplete       = "COMPLETE"
	StatusFailed         = "FAILED"
)

// Run represents the ledger record for one report generation in Firestore.
// It tracks progress and counts only; the report text is never stored.
type Run struct {
	FileHash         string    `firestore:"fileHash,omitempty"`
	OriginalFilename string    `firestore:"originalFilename,omitempty"`
	Status           string    `firestore:"status,omitempty"`
	ErrorDetails     string    `firestore:"errorDetails,omitempty"`
	PageCount        int       `firestore:"pageCount,omitempty"`
	ChunkCount       int       `firestore:"chunkCount,omitempty"`
	FailedPages      int       `firestore:"failedPages,omitempty"`
	FailedChunks     int       `firestore:"failedChunks,omitempty"`
	OutputName       string    `firestore:"outputName,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt,omitempty"`
	UpdatedAt        time.Time `firestore:"updatedAt,omitempty"`
}

// OutputDocument is the converted report on local disk. Generated stays false
// until the converter has written Path, so callers can skip regeneration.
type OutputDocument struct {
	Name      string
	Path      string
	Generated bool
}
