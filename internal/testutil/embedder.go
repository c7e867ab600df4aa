package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/cloo-solutions/ragdocs/internal/database"
)

// HashEmbedder maps each word to a fixed axis, so identical texts get
// identical vectors and texts sharing words end up close. Err, when set, is
// returned from EmbedBatch.
type HashEmbedder struct {
	Err error
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = HashVector(t)
	}
	return out, nil
}

func (e *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return HashVector(text), nil
}

func (e *HashEmbedder) Model() string  { return "hash-embedding" }
func (e *HashEmbedder) Dimension() int { return database.VectorDimension }

// HashVector is the unit-length bag-of-words vector of text.
func HashVector(text string) []float32 {
	v := make([]float32, database.VectorDimension)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(database.VectorDimension)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
