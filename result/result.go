// Package result defines the outcome of one processing attempt and the
// expiring store that caches it. A Result is not authoritative: the job
// record owns the status, and a result may expire while its record lives on.
package result

import (
	"context"
	"math"
	"time"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/id"
	"github.com/alejochang/pdf-processor/job"
)

// Result is the terminal payload of a job.
type Result struct {
	JobID                 id.JobID            `json:"job_id"`
	Status                job.Status          `json:"status"`
	Filename              string              `json:"filename"`
	Parser                job.ParserKind      `json:"parser"`
	Pages                 []pdfprocessor.Page `json:"pages"`
	Summary               string              `json:"summary,omitempty"`
	Error                 string              `json:"error,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	ProcessingTimeSeconds float64             `json:"processing_time_seconds"`
}

// Completed builds the result of a successful parse.
func Completed(r *job.Record, pages []pdfprocessor.Page, summary string, elapsed time.Duration) *Result {
	if pages == nil {
		pages = []pdfprocessor.Page{}
	}
	return &Result{
		JobID:                 r.ID,
		Status:                job.StatusCompleted,
		Filename:              r.Filename,
		Parser:                r.Parser,
		Pages:                 pages,
		Summary:               summary,
		CreatedAt:             r.CreatedAt,
		ProcessingTimeSeconds: Seconds(elapsed),
	}
}

// Failed builds the result of a failed attempt.
func Failed(r *job.Record, errMsg string, elapsed time.Duration) *Result {
	return &Result{
		JobID:                 r.ID,
		Status:                job.StatusFailed,
		Filename:              r.Filename,
		Parser:                r.Parser,
		Pages:                 []pdfprocessor.Page{},
		Error:                 errMsg,
		CreatedAt:             r.CreatedAt,
		ProcessingTimeSeconds: Seconds(elapsed),
	}
}

// Seconds rounds d to hundredths of a second.
func Seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}

// Store defines the persistence contract for results.
type Store interface {
	// PutResult stores r under its job ID, replacing any previous value,
	// and expires it after ttl.
	PutResult(ctx context.Context, r *Result, ttl time.Duration) error

	// GetResult returns the stored result, or ErrResultNotFound when it is
	// absent or expired.
	GetResult(ctx context.Context, jobID id.JobID) (*Result, error)

	// DeleteResult removes a result early. Deleting a missing result is
	// not an error.
	DeleteResult(ctx context.Context, jobID id.JobID) error
}
