package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument(t *testing.T) {
	doc := NewDocument("Report.PDF", 2048, 512, "text-embedding-3-small", 1536)

	assert.Equal(t, "Report.PDF", doc.Filename)
	assert.Equal(t, ".pdf", doc.FileExtension)
	assert.Equal(t, int64(2048), doc.FileSize)
	assert.Equal(t, DocumentStatusProcessing, doc.Status)
	assert.Equal(t, 512, doc.ChunkSize)
	assert.Equal(t, 0, doc.NumChunks)
	assert.Empty(t, doc.MarkdownContent)
	assert.Nil(t, doc.CompletedAt)
	assert.NotNil(t, doc.Metadata)
}

func TestDocumentStatusTransitions(t *testing.T) {
	tests := []struct {
		from DocumentStatus
		to   DocumentStatus
		want bool
	}{
		{DocumentStatusProcessing, DocumentStatusCompleted, true},
		{DocumentStatusProcessing, DocumentStatusFailed, true},
		{DocumentStatusProcessing, DocumentStatusProcessing, false},
		{DocumentStatusCompleted, DocumentStatusFailed, false},
		{DocumentStatusCompleted, DocumentStatusProcessing, false},
		{DocumentStatusFailed, DocumentStatusCompleted, false},
		{DocumentStatusFailed, DocumentStatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestDocumentStatusIsTerminal(t *testing.T) {
	assert.False(t, DocumentStatusProcessing.IsTerminal())
	assert.True(t, DocumentStatusCompleted.IsTerminal())
	assert.True(t, DocumentStatusFailed.IsTerminal())
}

func TestParseDocumentStatus(t *testing.T) {
	s, err := ParseDocumentStatus(" Completed ")
	require.NoError(t, err)
	assert.Equal(t, DocumentStatusCompleted, s)

	_, err = ParseDocumentStatus("archived")
	require.Error(t, err)
	assert.Equal(t, ErrCodeValidation, CodeOf(err))
	assert.True(t, errors.Is(err, ErrInvalidDocumentStatus))
}

func TestValidateDocument(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		doc     *Document
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid processing document",
			doc:     NewDocument("a.pdf", 10, 512, "m", 1536),
			wantErr: false,
		},
		{
			name:    "nil document",
			doc:     nil,
			wantErr: true,
			errMsg:  "cannot be nil",
		},
		{
			name:    "missing filename",
			doc:     NewDocument(" ", 10, 512, "m", 1536),
			wantErr: true,
			errMsg:  "Filename is required",
		},
		{
			name:    "chunk size too small",
			doc:     NewDocument("a.pdf", 10, 8, "m", 1536),
			wantErr: true,
			errMsg:  "ChunkSize",
		},
		{
			name: "completed without completed_at",
			doc: &Document{
				Filename: "a.pdf", Status: DocumentStatusCompleted,
				ChunkSize: 512, EmbeddingDimension: 1536,
			},
			wantErr: true,
			errMsg:  "CompletedAt",
		},
		{
			name: "completed with completed_at",
			doc: &Document{
				Filename: "a.pdf", Status: DocumentStatusCompleted,
				ChunkSize: 512, EmbeddingDimension: 1536, CompletedAt: &now,
			},
			wantErr: false,
		},
		{
			name: "error message on processing document",
			doc: &Document{
				Filename: "a.pdf", Status: DocumentStatusProcessing,
				ChunkSize: 512, EmbeddingDimension: 1536, ErrorMessage: "boom",
			},
			wantErr: true,
			errMsg:  "ErrorMessage",
		},
		{
			name: "invalid status",
			doc: &Document{
				Filename: "a.pdf", Status: "queued",
				ChunkSize: 512, EmbeddingDimension: 1536,
			},
			wantErr: true,
			errMsg:  "Status is invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateChunkSize(t *testing.T) {
	assert.NoError(t, ValidateChunkSize(DefaultChunkSize))
	assert.NoError(t, ValidateChunkSize(MinChunkSize))
	assert.NoError(t, ValidateChunkSize(MaxChunkSize))

	err := ValidateChunkSize(MaxChunkSize + 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidChunkSize))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "çã", Truncate("çãé", 2))
}
