package domain

import (
	"time"
)

// JobStatus represents the status of an ingestion job
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the job has finished.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed:
		return true
	case JobStatusProcessing:
		return false
	}
	return false
}

// Stage is the internal step of an ingestion run. Only PROCESSING,
// COMPLETED and FAILED are visible on the document itself.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageConverting Stage = "converting"
	StageChunking   Stage = "chunking"
	StageEmbedding  Stage = "embedding"
	StagePersisting Stage = "persisting"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// next returns the stage that follows s in the fixed pipeline order.
func (s Stage) next() Stage {
	switch s {
	case StageQueued:
		return StageConverting
	case StageConverting:
		return StageChunking
	case StageChunking:
		return StageEmbedding
	case StageEmbedding:
		return StagePersisting
	case StagePersisting:
		return StageCompleted
	case StageCompleted, StageFailed:
		return s
	}
	return s
}

// CanAdvanceTo reports whether a run at s may move to next. Stages only
// move forward one step at a time; FAILED is reachable from any
// non-terminal stage.
func (s Stage) CanAdvanceTo(next Stage) bool {
	if s == StageCompleted || s == StageFailed {
		return false
	}
	if next == StageFailed {
		return true
	}
	return s.next() == next
}

// ErrorCode returns the failure code for an error raised in this stage.
func (s Stage) ErrorCode() string {
	switch s {
	case StageConverting:
		return ErrCodeConversion
	case StageChunking:
		return ErrCodeChunking
	case StageEmbedding:
		return ErrCodeEmbedding
	case StagePersisting:
		return ErrCodePersistence
	case StageQueued, StageCompleted, StageFailed:
		return ErrCodeInternalError
	}
	return ErrCodeInternalError
}

// StageError is a fatal failure of one pipeline stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Code returns the domain error code of the failed stage.
func (e *StageError) Code() string {
	return e.Stage.ErrorCode()
}

// NewStageError wraps err as a failure of stage. A nil err yields nil.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// Job tracks one asynchronous ingestion run.
type Job struct {
	ID          string
	DocumentID  int64
	Status      JobStatus
	Stage       Stage
	Filename    string
	CreatedAt   time.Time
	CompletedAt *time.Time
	Error       string
	Result      *JobResult
}

// JobResult summarizes a successful ingestion run.
type JobResult struct {
	Filename           string   `json:"filename"`
	MarkdownLength     int      `json:"markdown_length"`
	NumChunks          int      `json:"num_chunks"`
	MaxTokensPerChunk  int      `json:"max_tokens_per_chunk"`
	EmbeddingModel     string   `json:"embedding_model"`
	EmbeddingDimension int      `json:"embedding_dimension"`
	ChunkingMethod     string   `json:"chunking_method"`
	Tokenizer          string   `json:"tokenizer"`
	MarkdownPreview    string   `json:"markdown_preview"`
	ChunksPreview      []string `json:"chunks_preview"`
}

// NewJob creates a job in the PROCESSING status and QUEUED stage.
func NewJob(id string, documentID int64, filename string, createdAt time.Time) *Job {
	return &Job{
		ID:         id,
		DocumentID: documentID,
		Status:     JobStatusProcessing,
		Stage:      StageQueued,
		Filename:   filename,
		CreatedAt:  createdAt,
	}
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	c := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Result != nil {
		r := *j.Result
		r.ChunksPreview = append([]string(nil), j.Result.ChunksPreview...)
		c.Result = &r
	}
	return &c
}
