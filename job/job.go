package job

import (
	"fmt"
	"time"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/id"
)

// Status represents the lifecycle status of a job.
type Status string

const (
	// StatusPending means the job is queued and waiting for a worker.
	StatusPending Status = "pending"
	// StatusProcessing means a worker is running the parser.
	StatusProcessing Status = "processing"
	// StatusCompleted means the parser succeeded and a result was stored.
	StatusCompleted Status = "completed"
	// StatusFailed means processing failed; Record.Error says why.
	StatusFailed Status = "failed"
)

// ParseStatus converts a stored string into a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("job: unknown status %q", s)
}

// IsTerminal reports whether no further transition can happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether a record in status s may be moved to next.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next.IsTerminal()
	}
	return false
}

// AllowedFrom lists every status from which next may be written.
func AllowedFrom(next Status) []Status {
	var from []Status
	for _, s := range []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		if s.CanTransitionTo(next) {
			from = append(from, s)
		}
	}
	return from
}

// ParserKind selects the parser implementation for a job.
type ParserKind string

const (
	// ParserPyPDF is plain text extraction.
	ParserPyPDF ParserKind = "pypdf"
	// ParserGemini is AI-structured extraction.
	ParserGemini ParserKind = "gemini"
	// ParserMistral is OCR-based extraction for scanned documents.
	ParserMistral ParserKind = "mistral"
)

// ParserKinds lists the known parser variants.
func ParserKinds() []ParserKind {
	return []ParserKind{ParserPyPDF, ParserGemini, ParserMistral}
}

// ParseParserKind validates a parser variant name.
func ParseParserKind(s string) (ParserKind, error) {
	for _, k := range ParserKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", pdfprocessor.ErrInvalidParser, s)
}

// Record is the authoritative metadata of one submitted job.
type Record struct {
	ID        id.JobID   `json:"job_id"`
	Status    Status     `json:"status"`
	Filename  string     `json:"filename"`
	Parser    ParserKind `json:"parser"`
	CreatedAt time.Time  `json:"created_at"`
	Error     string     `json:"error,omitempty"`
}

// NewRecord returns a pending record created now.
func NewRecord(jobID id.JobID, filename string, parser ParserKind) *Record {
	return &Record{
		ID:        jobID,
		Status:    StatusPending,
		Filename:  filename,
		Parser:    parser,
		CreatedAt: time.Now().UTC(),
	}
}
