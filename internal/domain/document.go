package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DocumentStatus is the externally visible processing state of a document.
type DocumentStatus string

const (
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

const (
	DefaultChunkSize          = 512
	MinChunkSize              = 64
	MaxChunkSize              = 8192
	DefaultEmbeddingDimension = 1536
)

// IsTerminal reports whether no further transitions are allowed.
func (s DocumentStatus) IsTerminal() bool {
	switch s {
	case DocumentStatusCompleted, DocumentStatusFailed:
		return true
	case DocumentStatusProcessing:
		return false
	}
	return false
}

// CanTransitionTo reports whether s may move to next.
// PROCESSING moves to either terminal state; terminal states never move.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	switch s {
	case DocumentStatusProcessing:
		return next == DocumentStatusCompleted || next == DocumentStatusFailed
	case DocumentStatusCompleted, DocumentStatusFailed:
		return false
	}
	return false
}

// ParseDocumentStatus converts a raw string into a DocumentStatus.
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	status := DocumentStatus(strings.ToLower(strings.TrimSpace(s)))
	if !isValidDocumentStatus(status) {
		return "", NewDomainErrorWithCause(ErrCodeValidation, "invalid document status", fmt.Errorf("%q", s))
	}
	return status, nil
}

func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusProcessing, DocumentStatusCompleted, DocumentStatusFailed:
		return true
	}
	return false
}

// Document is an uploaded file and its processing outcome.
type Document struct {
	ID                 int64
	Filename           string
	FileExtension      string
	FileSize           int64
	Status             DocumentStatus
	ErrorMessage       string
	MarkdownContent    string
	MarkdownLength     int
	NumChunks          int
	ChunkSize          int
	EmbeddingModel     string
	EmbeddingDimension int
	Metadata           map[string]any
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
}

// DocumentFilter selects a page of documents, newest first. An empty
// Status matches every document.
type DocumentFilter struct {
	Offset int
	Limit  int
	Status DocumentStatus
}

// NewDocument creates a document in the initial PROCESSING state.
func NewDocument(filename string, sizeBytes int64, chunkSize int, model string, dimension int) *Document {
	return &Document{
		Filename:           filename,
		FileExtension:      FileExtension(filename),
		FileSize:           sizeBytes,
		Status:             DocumentStatusProcessing,
		ChunkSize:          chunkSize,
		EmbeddingModel:     model,
		EmbeddingDimension: dimension,
		Metadata:           map[string]any{},
	}
}

// FileExtension returns the lower-cased extension of filename including the dot.
func FileExtension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// Preview returns at most n runes of the markdown content.
func (d *Document) Preview(n int) string {
	return Truncate(d.MarkdownContent, n)
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if strings.TrimSpace(d.Filename) == "" {
		return fmt.Errorf("document Filename is required")
	}

	if d.FileSize < 0 {
		return fmt.Errorf("document FileSize cannot be negative")
	}

	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	if d.ChunkSize < MinChunkSize || d.ChunkSize > MaxChunkSize {
		return fmt.Errorf("document ChunkSize must be between %d and %d", MinChunkSize, MaxChunkSize)
	}

	if d.EmbeddingDimension <= 0 {
		return fmt.Errorf("document EmbeddingDimension must be positive")
	}

	if (d.Status == DocumentStatusCompleted) != (d.CompletedAt != nil) {
		return fmt.Errorf("document CompletedAt must be set only when completed")
	}

	if d.ErrorMessage != "" && d.Status != DocumentStatusFailed {
		return fmt.Errorf("document ErrorMessage must be empty unless failed")
	}

	return nil
}

// ValidateChunkSize checks a requested token budget.
func ValidateChunkSize(size int) error {
	if size < MinChunkSize || size > MaxChunkSize {
		return NewDomainErrorWithCause(ErrCodeValidation, "invalid chunk size",
			fmt.Errorf("must be between %d and %d, got %d", MinChunkSize, MaxChunkSize, size))
	}
	return nil
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
