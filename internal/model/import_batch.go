package model

import "time"

type ImportBatchStatus string

const ImportBatchCommitted ImportBatchStatus = "committed"

// ImportBatch records where a group of committed transactions came from.
// It is written once and never updated.
type ImportBatch struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Filename    string            `json:"filename"`
	FileType    string            `json:"fileType"`
	ParserID    string            `json:"parserId"`
	Status      ImportBatchStatus `json:"status"`
	CommittedAt time.Time         `json:"committedAt"`
	ExpiresAt   time.Time         `json:"expiresAt"`
}

type BatchInfo struct {
	Filename string `json:"filename" validate:"required"`
	FileType string `json:"fileType" validate:"required"`
	ParserID string `json:"parserId" validate:"required"`
}

type CommitImportRequest struct {
	UserID          string
	Transactions    []ImportTransaction
	SelectedIndices []int
	BatchInfo       *BatchInfo
}

type CommitResult struct {
	ImportedCount int     `json:"importedCount"`
	BatchID       *string `json:"batchId,omitempty"`
}

type DuplicateMatch struct {
	Transaction  *Transaction `json:"transaction"`
	MatchScore   float64      `json:"matchScore"`
	MatchReasons []string     `json:"matchReasons"`
}

type DuplicateGroup struct {
	Index   int              `json:"index"`
	Matches []DuplicateMatch `json:"matches"`
}

type CheckImportResult struct {
	Duplicates []DuplicateGroup `json:"duplicates"`
	CleanCount int              `json:"cleanCount"`
}
