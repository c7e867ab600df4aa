package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message,
// so wrapped copies of a sentinel still match it.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or
// ErrCodeInternalError when there is none.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternalError
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Pipeline stage error codes
const (
	ErrCodeConversion  = "CONVERSION_ERROR"
	ErrCodeChunking    = "CHUNKING_ERROR"
	ErrCodeEmbedding   = "EMBEDDING_ERROR"
	ErrCodePersistence = "PERSISTENCE_ERROR"
)

// Validation errors
var (
	ErrInvalidDocumentStatus     = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrUnsupportedFileType       = NewDomainError(ErrCodeValidation, "unsupported file type")
	ErrInvalidChunkSize          = NewDomainError(ErrCodeValidation, "invalid chunk size")
	ErrInvalidEmbeddingDimension = NewDomainError(ErrCodeValidation, "embedding length does not match document dimension")
	ErrInvalidChunkIndex         = NewDomainError(ErrCodeValidation, "chunk indexes must be contiguous from zero")
	ErrEmbedderNotConfigured     = NewDomainError(ErrCodeValidation, "embedding provider not configured")
	ErrMissingRequiredField      = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidMessageRole        = NewDomainError(ErrCodeValidation, "invalid message role")
)

// Not found errors
var (
	ErrDocumentNotFound     = NewDomainError(ErrCodeNotFound, "document not found")
	ErrChunkNotFound        = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrJobNotFound          = NewDomainError(ErrCodeNotFound, "job not found")
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, "conversation not found")
	ErrArchiveNotFound      = NewDomainError(ErrCodeNotFound, "original file not archived")
)

// Operation errors
var (
	ErrInvalidStatusTransition = NewDomainError(ErrCodeInvalidOperation, "document is already in a terminal state")
)
