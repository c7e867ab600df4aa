//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/cloo-solutions/ragdocs/internal/database"
	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/cloo-solutions/ragdocs/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setupTestDB(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(context.Background()) })

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)
	return pool
}

func createTestDocument(ctx context.Context, t *testing.T, repo *DocumentRepository, filename string) *domain.Document {
	t.Helper()
	doc := domain.NewDocument(filename, 128, domain.DefaultChunkSize, "text-embedding-3-small", database.VectorDimension)
	require.NoError(t, repo.Create(ctx, doc))
	return doc
}

// axisVector is a unit vector along axis i
func axisVector(i int) []float32 {
	v := make([]float32, database.VectorDimension)
	v[i%database.VectorDimension] = 1
	return v
}

// blendVector points mostly along a with a small component along b
func blendVector(a, b int, weight float32) []float32 {
	v := axisVector(a)
	v[b%database.VectorDimension] = weight
	return v
}

func chunkInputs(vectors ...[]float32) []domain.ChunkInput {
	out := make([]domain.ChunkInput, len(vectors))
	for i, v := range vectors {
		out[i] = domain.ChunkInput{
			ChunkIndex: i,
			Text:       "chunk " + string(rune('a'+i)),
			Embedding:  v,
			Metadata:   domain.ChunkMetadata{Headings: []string{"Intro"}, TokenCount: 2},
		}
	}
	return out
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
