// Package store persists analysis records.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/resume-fit/internal/compat"
	"github.com/spigell/resume-fit/internal/feedback"
)

var ErrNotFound = errors.New("record not found")

// Record is one persisted analysis.
type Record struct {
	ID             uuid.UUID          `json:"id"`
	CreatedAt      time.Time          `json:"created_at"`
	JobTitle       string             `json:"job_title,omitempty"`
	JobDescription string             `json:"job_description"`
	ResumeSource   string             `json:"resume_source,omitempty"`
	Result         *compat.Result     `json:"result"`
	Feedback       *feedback.Feedback `json:"feedback,omitempty"`
}

func NewRecord(jobTitle, jobDescription, resumeSource string, res *compat.Result) *Record {
	return &Record{
		ID:             uuid.New(),
		CreatedAt:      time.Now().UTC(),
		JobTitle:       jobTitle,
		JobDescription: jobDescription,
		ResumeSource:   resumeSource,
		Result:         res,
	}
}

type Store interface {
	// Save inserts the record or replaces the record with the same ID.
	Save(ctx context.Context, r *Record) error
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	// List returns up to limit records, newest first. A non-positive limit
	// returns everything.
	List(ctx context.Context, limit int) ([]*Record, error)
	Close() error
}

// DumpToTmpFile writes v as indented JSON to a new temporary file and
// returns its path.
func DumpToTmpFile(pattern string, v any) (string, error) {
	file, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return file.Name(), nil
}
