package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDocumentService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("applies defaults and returns total", func(t *testing.T) {
		docs := new(MockDocumentRepository)
		svc := NewDocumentService(docs, new(MockChunkRepository), nil, zerolog.Nop())

		filter := domain.DocumentFilter{Offset: 0, Limit: DefaultPageLimit, Status: domain.DocumentStatusCompleted}
		docs.On("List", mock.Anything, filter).Return([]*domain.Document{{ID: 2}, {ID: 1}}, nil)
		docs.On("Count", mock.Anything, domain.DocumentStatusCompleted).Return(2, nil)

		out, err := svc.List(ctx, ListDocumentsInput{Status: domain.DocumentStatusCompleted})

		require.NoError(t, err)
		assert.Equal(t, 2, out.Total)
		assert.Equal(t, DefaultPageLimit, out.Limit)
		assert.Len(t, out.Documents, 2)
	})

	t.Run("rejects bad pagination", func(t *testing.T) {
		svc := NewDocumentService(new(MockDocumentRepository), new(MockChunkRepository), nil, zerolog.Nop())

		_, err := svc.List(ctx, ListDocumentsInput{Offset: -1})
		assert.Equal(t, domain.ErrCodeValidation, domain.CodeOf(err))

		_, err = svc.List(ctx, ListDocumentsInput{Limit: MaxPageLimit + 1})
		assert.Equal(t, domain.ErrCodeValidation, domain.CodeOf(err))
	})
}

func TestDocumentService_Rename(t *testing.T) {
	ctx := context.Background()
	docs := new(MockDocumentRepository)
	svc := NewDocumentService(docs, new(MockChunkRepository), nil, zerolog.Nop())

	docs.On("UpdateFilename", mock.Anything, int64(1), "new.pdf").Return(nil)
	docs.On("GetByID", mock.Anything, int64(1)).Return(&domain.Document{ID: 1, Filename: "new.pdf"}, nil)

	doc, err := svc.Rename(ctx, 1, " new.pdf ")
	require.NoError(t, err)
	assert.Equal(t, "new.pdf", doc.Filename)

	_, err = svc.Rename(ctx, 1, "")
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
}

func TestDocumentService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes document and archived original", func(t *testing.T) {
		docs := new(MockDocumentRepository)
		archive := new(MockArchive)
		svc := NewDocumentService(docs, new(MockChunkRepository), archive, zerolog.Nop())

		doc := &domain.Document{ID: 3, Metadata: map[string]any{"archive_key": "documents/3/a.pdf"}}
		docs.On("GetByID", mock.Anything, int64(3)).Return(doc, nil)
		docs.On("Delete", mock.Anything, int64(3)).Return(true, nil)
		archive.On("DeleteObject", mock.Anything, "documents/3/a.pdf").Return(errors.New("gone"))

		require.NoError(t, svc.Delete(ctx, 3))
		archive.AssertExpectations(t)
	})

	t.Run("missing document", func(t *testing.T) {
		docs := new(MockDocumentRepository)
		svc := NewDocumentService(docs, new(MockChunkRepository), nil, zerolog.Nop())
		docs.On("GetByID", mock.Anything, int64(4)).Return(nil, domain.ErrDocumentNotFound)

		assert.ErrorIs(t, svc.Delete(ctx, 4), domain.ErrDocumentNotFound)
		docs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestDocumentService_ListChunks(t *testing.T) {
	ctx := context.Background()
	docs := new(MockDocumentRepository)
	chunks := new(MockChunkRepository)
	svc := NewDocumentService(docs, chunks, nil, zerolog.Nop())

	docs.On("GetByID", mock.Anything, int64(8)).Return(&domain.Document{ID: 8}, nil)
	chunks.On("ListByDocument", mock.Anything, int64(8), 10, 5).Return([]*domain.DocumentChunk{{ChunkIndex: 10}}, nil)
	chunks.On("CountByDocument", mock.Anything, int64(8)).Return(11, nil)

	out, err := svc.ListChunks(ctx, 8, 10, 5)

	require.NoError(t, err)
	assert.Equal(t, 11, out.Total)
	assert.Equal(t, int64(8), out.DocumentID)
	assert.Len(t, out.Chunks, 1)
}

func TestDocumentService_DeleteChunk(t *testing.T) {
	ctx := context.Background()
	chunks := new(MockChunkRepository)
	svc := NewDocumentService(new(MockDocumentRepository), chunks, nil, zerolog.Nop())

	chunks.On("Delete", mock.Anything, int64(1)).Return(true, nil)
	chunks.On("Delete", mock.Anything, int64(2)).Return(false, nil)

	assert.NoError(t, svc.DeleteChunk(ctx, 1))
	assert.ErrorIs(t, svc.DeleteChunk(ctx, 2), domain.ErrChunkNotFound)
}

func TestDocumentService_DownloadURL(t *testing.T) {
	ctx := context.Background()
	docs := new(MockDocumentRepository)
	archive := new(MockArchive)
	svc := NewDocumentService(docs, new(MockChunkRepository), archive, zerolog.Nop())

	docs.On("GetByID", mock.Anything, int64(1)).Return(&domain.Document{ID: 1, Metadata: map[string]any{"archive_key": "documents/1/a.pdf"}}, nil)
	docs.On("GetByID", mock.Anything, int64(2)).Return(&domain.Document{ID: 2, Metadata: map[string]any{}}, nil)
	archive.On("GenerateDownloadURL", mock.Anything, "documents/1/a.pdf").Return("https://s3/signed", nil)

	url, err := svc.DownloadURL(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://s3/signed", url)

	_, err = svc.DownloadURL(ctx, 2)
	assert.ErrorIs(t, err, domain.ErrArchiveNotFound)
}
