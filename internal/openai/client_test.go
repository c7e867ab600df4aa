package openai

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingAPI is a mock for the embeddings endpoint
type MockEmbeddingAPI struct {
	mock.Mock
}

func (m *MockEmbeddingAPI) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func newTestClient(api EmbeddingAPI, dims, batchSize, retries int) *Client {
	c := newClient(api, "test-model", dims, Config{BatchSize: batchSize, MaxRetries: retries, Logger: zerolog.Nop()})
	c.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

func vectors(n, dims int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dims)
		out[i][0] = float32(i)
	}
	return out
}

func TestClient_EmbedBatch_SplitsIntoBatches(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := newTestClient(mockAPI, 4, 2, 0)
	ctx := context.Background()

	mockAPI.On("CreateEmbeddings", ctx, []string{"a", "b"}).Return(vectors(2, 4), nil).Once()
	mockAPI.On("CreateEmbeddings", ctx, []string{"c"}).Return([][]float32{{9, 0, 0, 0}}, nil).Once()

	out, err := client.EmbedBatch(ctx, []string{"a", "b", "c"})

	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, float32(0), out[0][0])
	assert.Equal(t, float32(1), out[1][0])
	assert.Equal(t, float32(9), out[2][0])
	mockAPI.AssertExpectations(t)
}

func TestClient_EmbedBatch_Empty(t *testing.T) {
	client := newTestClient(new(MockEmbeddingAPI), 4, 2, 0)

	out, err := client.EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestClient_EmbedBatch_EmptyText(t *testing.T) {
	client := NewClient("")

	out, err := client.EmbedBatch(context.Background(), []string{"ok", "  "})

	assert.Nil(t, out)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_EmbedBatch_WrongDimensions(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := newTestClient(mockAPI, 4, 10, 0)
	ctx := context.Background()

	mockAPI.On("CreateEmbeddings", ctx, []string{"a"}).Return(vectors(1, 3), nil)

	out, err := client.EmbedBatch(ctx, []string{"a"})

	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestClient_EmbedBatch_WrongCount(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := newTestClient(mockAPI, 4, 10, 0)
	ctx := context.Background()

	mockAPI.On("CreateEmbeddings", ctx, []string{"a", "b"}).Return(vectors(1, 4), nil)

	_, err := client.EmbedBatch(ctx, []string{"a", "b"})

	assert.ErrorIs(t, err, ErrWrongCount)
}

func TestClient_EmbedBatch_RetriesTransientErrors(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := newTestClient(mockAPI, 4, 10, 3)
	ctx := context.Background()

	rateLimited := &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}
	mockAPI.On("CreateEmbeddings", ctx, []string{"a"}).Return(nil, rateLimited).Twice()
	mockAPI.On("CreateEmbeddings", ctx, []string{"a"}).Return(vectors(1, 4), nil).Once()

	out, err := client.EmbedBatch(ctx, []string{"a"})

	require.NoError(t, err)
	assert.Len(t, out, 1)
	mockAPI.AssertNumberOfCalls(t, "CreateEmbeddings", 3)
}

func TestClient_EmbedBatch_GivesUpAfterMaxRetries(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := newTestClient(mockAPI, 4, 10, 2)
	ctx := context.Background()

	serverErr := &openai.APIError{HTTPStatusCode: http.StatusBadGateway, Message: "bad gateway"}
	mockAPI.On("CreateEmbeddings", ctx, []string{"a"}).Return(nil, serverErr)

	_, err := client.EmbedBatch(ctx, []string{"a"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create embedding")
	mockAPI.AssertNumberOfCalls(t, "CreateEmbeddings", 3)
}

func TestClient_EmbedBatch_DoesNotRetryClientErrors(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := newTestClient(mockAPI, 4, 10, 3)
	ctx := context.Background()

	badRequest := &openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "too long"}
	mockAPI.On("CreateEmbeddings", ctx, []string{"a"}).Return(nil, badRequest)

	_, err := client.EmbedBatch(ctx, []string{"a"})

	require.Error(t, err)
	var apiErr *openai.APIError
	assert.True(t, errors.As(err, &apiErr))
	mockAPI.AssertNumberOfCalls(t, "CreateEmbeddings", 1)
}

func TestClient_EmbedQuery(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := newTestClient(mockAPI, 4, 10, 0)
	ctx := context.Background()

	mockAPI.On("CreateEmbeddings", ctx, []string{"what is go"}).Return([][]float32{{1, 2, 3, 4}}, nil)

	v, err := client.EmbedQuery(ctx, "what is go")

	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, v)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &openai.APIError{HTTPStatusCode: 429}, true},
		{"server error", &openai.APIError{HTTPStatusCode: 503}, true},
		{"bad request", &openai.APIError{HTTPStatusCode: 400}, false},
		{"unauthorized request", &openai.RequestError{HTTPStatusCode: 401, Err: errors.New("no")}, false},
		{"request 500", &openai.RequestError{HTTPStatusCode: 500, Err: errors.New("oops")}, true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestNewClientWithConfig_Defaults(t *testing.T) {
	client := NewClientWithConfig(Config{APIKey: "k", Logger: zerolog.Nop()})

	assert.NotNil(t, client.api)
	assert.Equal(t, string(DefaultEmbeddingModel), client.Model())
	assert.Equal(t, DefaultEmbeddingDimensions, client.Dimension())
	assert.Equal(t, DefaultBatchSize, client.batchSize)
}

func TestNewClientWithConfig_Azure(t *testing.T) {
	client := NewClientWithConfig(Config{
		APIKey:          "k",
		AzureEndpoint:   "https://example.openai.azure.com",
		AzureAPIVersion: "2024-02-01",
		EmbeddingModel:  "text-embedding-3-large",
		Logger:          zerolog.Nop(),
	})

	assert.Equal(t, "text-embedding-3-large", client.Model())
	adapter, ok := client.api.(*OpenAIAdapter)
	require.True(t, ok)
	assert.Equal(t, openai.EmbeddingModel("text-embedding-3-large"), adapter.model)
}
