package models

import (
	"time"

	"github.com/google/uuid"
)

type Job struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Filename   string     `json:"filename" db:"filename"`
	Kind       string     `json:"kind" db:"kind"`
	FilePath   string     `json:"-" db:"file_path"`
	FileSize   int64      `json:"file_size_bytes" db:"file_size_bytes"`
	Status     string     `json:"status" db:"status"`
	Preprocess bool       `json:"preprocess" db:"preprocess"`
	Languages  []string   `json:"languages,omitempty" db:"languages"`
	PageCount  int        `json:"page_count" db:"page_count"`
	PagesDone  int        `json:"pages_done" db:"pages_done"`
	Text       string     `json:"text,omitempty" db:"result_text"`
	Error      string     `json:"error,omitempty" db:"error"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

type JobPage struct {
	ID         uuid.UUID `json:"id" db:"id"`
	JobID      uuid.UUID `json:"job_id" db:"job_id"`
	PageNumber int       `json:"page_number" db:"page_number"`
	Status     string    `json:"status" db:"status"`
	Text       string    `json:"text" db:"text"`
	Source     string    `json:"source" db:"source"`
}

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"
)

const (
	JobKindImage = "image"
	JobKindPDF   = "pdf"
)

const (
	PageStatusOK     = "ok"
	PageStatusEmpty  = "empty"
	PageStatusFailed = "failed"
)

// Page text provenance: either the PDF's embedded text layer or OCR.
const (
	PageSourceTextLayer = "text_layer"
	PageSourceOCR       = "ocr"
)
