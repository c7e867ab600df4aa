package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the model used when none is configured
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions matches the vector column width
	DefaultEmbeddingDimensions = 1536
	DefaultBatchSize           = 256
	DefaultMaxRetries          = 3

	retryInitialInterval = 500 * time.Millisecond
	retryMaxInterval     = 10 * time.Second
)

var (
	// ErrEmptyText is returned when an input text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has the wrong length
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrWrongCount is returned when the provider returns fewer or more vectors than inputs
	ErrWrongCount = errors.New("embedding count does not match input count")
	// ErrNoAPIKey is returned when no API key is configured
	ErrNoAPIKey = errors.New("openai api key not set")
)

// EmbeddingAPI embeds one batch of texts, returning vectors in input order.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIAdapter calls the OpenAI (or Azure OpenAI) embeddings endpoint.
type OpenAIAdapter struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

func NewOpenAIAdapter(cfg openai.ClientConfig, model openai.EmbeddingModel, dimensions int) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OpenAIAdapter{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}
}

// CreateEmbeddings calls the embeddings API for one batch.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	}
	// Only the v3 family accepts a requested output size.
	if strings.HasPrefix(string(a.model), "text-embedding-3") {
		req.Dimensions = a.dimensions
	}

	resp, err := a.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i := range data {
		out[i] = data[i].Embedding
	}
	return out, nil
}

type Config struct {
	APIKey              string
	BaseURL             string
	AzureEndpoint       string
	AzureAPIVersion     string
	EmbeddingModel      string
	EmbeddingDimensions int
	BatchSize           int
	MaxRetries          int
	Logger              zerolog.Logger
}

// Client embeds texts in batches with retries on transient failures.
type Client struct {
	api        EmbeddingAPI
	model      string
	dimensions int
	batchSize  int
	maxRetries int
	log        zerolog.Logger
	newBackOff func() backoff.BackOff
}

// NewClient creates a client for the public OpenAI API using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey, Logger: zerolog.Nop()})
}

// NewClientWithConfig creates a client with explicit configuration. An Azure
// endpoint takes precedence over BaseURL.
func NewClientWithConfig(cfg Config) *Client {
	model := cfg.EmbeddingModel
	if model == "" {
		model = string(DefaultEmbeddingModel)
	}
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}

	var clientCfg openai.ClientConfig
	switch {
	case cfg.AzureEndpoint != "":
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.AzureEndpoint)
		if cfg.AzureAPIVersion != "" {
			clientCfg.APIVersion = cfg.AzureAPIVersion
		}
	default:
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
	}

	return newClient(NewOpenAIAdapter(clientCfg, openai.EmbeddingModel(model), dimensions), model, dimensions, cfg)
}

func newClient(api EmbeddingAPI, model string, dimensions int, cfg Config) *Client {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		api:        api,
		model:      model,
		dimensions: dimensions,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		log:        cfg.Logger,
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = 0
	return b
}

func (c *Client) Model() string  { return c.model }
func (c *Client) Dimension() int { return c.dimensions }

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in order, one API call per batch of BatchSize inputs.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, ErrEmptyText
		}
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		batch := texts[start:end]

		vectors, err := c.embedWithRetry(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding: %w", err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongCount, len(vectors), len(batch))
		}
		for _, v := range vectors {
			if len(v) != c.dimensions {
				return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongDimensions, len(v), c.dimensions)
			}
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *Client) embedWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32
	attempt := 0

	op := func() error {
		attempt++
		v, err := c.api.CreateEmbeddings(ctx, batch)
		if err != nil {
			if ctx.Err() != nil || !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		vectors = v
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.log.Warn().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Int("batch_size", len(batch)).
			Msg("embedding request failed, retrying")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxRetries)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return vectors, nil
}

// IsRetryable reports whether err is a rate limit, server error or network timeout.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
