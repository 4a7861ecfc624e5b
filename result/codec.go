package result

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	pdfprocessor "github.com/alejochang/pdf-processor"
	"github.com/alejochang/pdf-processor/id"
	"github.com/alejochang/pdf-processor/job"
)

// Codec serializes results for storage.
type Codec interface {
	// Encode serializes a result to bytes.
	Encode(r *Result) ([]byte, error)

	// Decode deserializes bytes into a result.
	Decode(data []byte) (*Result, error)

	// Name returns the codec identifier.
	Name() string
}

// Codec names accepted by GetCodec.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns a codec by name. Defaults to JSON.
func GetCodec(name string) Codec {
	if name == CodecNameMsgpack {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}

// JSONCodec stores results as JSON, readable by any client.
type JSONCodec struct{}

func (JSONCodec) Encode(r *Result) ([]byte, error) { return json.Marshal(r) }

func (JSONCodec) Decode(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("result: decode json: %w", err)
	}
	return &r, nil
}

func (JSONCodec) Name() string { return CodecNameJSON }

// MsgpackCodec stores results as MessagePack, which is noticeably smaller
// for large page sets.
type MsgpackCodec struct{}

// wireResult is the msgpack shape of a Result. IDs travel as strings.
type wireResult struct {
	JobID                 string              `msgpack:"job_id"`
	Status                string              `msgpack:"status"`
	Filename              string              `msgpack:"filename"`
	Parser                string              `msgpack:"parser"`
	Pages                 []pdfprocessor.Page `msgpack:"pages"`
	Summary               string              `msgpack:"summary,omitempty"`
	Error                 string              `msgpack:"error,omitempty"`
	CreatedAt             time.Time           `msgpack:"created_at"`
	ProcessingTimeSeconds float64             `msgpack:"processing_time_seconds"`
}

func (MsgpackCodec) Encode(r *Result) ([]byte, error) {
	return msgpack.Marshal(&wireResult{
		JobID:                 r.JobID.String(),
		Status:                string(r.Status),
		Filename:              r.Filename,
		Parser:                string(r.Parser),
		Pages:                 r.Pages,
		Summary:               r.Summary,
		Error:                 r.Error,
		CreatedAt:             r.CreatedAt,
		ProcessingTimeSeconds: r.ProcessingTimeSeconds,
	})
}

func (MsgpackCodec) Decode(data []byte) (*Result, error) {
	var w wireResult
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("result: decode msgpack: %w", err)
	}
	jobID, err := id.ParseJobID(w.JobID)
	if err != nil {
		return nil, fmt.Errorf("result: decode msgpack: %w", err)
	}
	status, err := job.ParseStatus(w.Status)
	if err != nil {
		return nil, fmt.Errorf("result: decode msgpack: %w", err)
	}
	pages := w.Pages
	if pages == nil {
		pages = []pdfprocessor.Page{}
	}
	return &Result{
		JobID:                 jobID,
		Status:                status,
		Filename:              w.Filename,
		Parser:                job.ParserKind(w.Parser),
		Pages:                 pages,
		Summary:               w.Summary,
		Error:                 w.Error,
		CreatedAt:             w.CreatedAt.UTC(),
		ProcessingTimeSeconds: w.ProcessingTimeSeconds,
	}, nil
}

func (MsgpackCodec) Name() string { return CodecNameMsgpack }
