package client

// Document mirrors the API's document representation.
type Document struct {
	ID                 int64          `json:"id"`
	Filename           string         `json:"filename"`
	FileExtension      string         `json:"file_extension"`
	FileSize           int64          `json:"file_size"`
	Status             string         `json:"status"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	MarkdownPreview    string         `json:"markdown_preview,omitempty"`
	MarkdownLength     int            `json:"markdown_length"`
	NumChunks          int            `json:"num_chunks"`
	ChunkSize          int            `json:"chunk_size"`
	EmbeddingModel     string         `json:"embedding_model"`
	EmbeddingDimension int            `json:"embedding_dimension"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          string         `json:"created_at"`
	UpdatedAt          string         `json:"updated_at"`
	CompletedAt        *string        `json:"completed_at,omitempty"`
}

type DocumentList struct {
	Total     int        `json:"total"`
	Skip      int        `json:"skip"`
	Limit     int        `json:"limit"`
	HasMore   bool       `json:"has_more"`
	Documents []Document `json:"documents"`
}

type ChunkMetadata struct {
	Headings   []string `json:"headings,omitempty"`
	DocItems   []string `json:"doc_items,omitempty"`
	TokenCount int      `json:"token_count,omitempty"`
}

type Chunk struct {
	ID         int64         `json:"id"`
	DocumentID int64         `json:"document_id"`
	ChunkIndex int           `json:"chunk_index"`
	Text       string        `json:"text"`
	TextLength int           `json:"text_length"`
	Metadata   ChunkMetadata `json:"metadata"`
	CreatedAt  string        `json:"created_at"`
}

type ChunkList struct {
	DocumentID  int64   `json:"document_id"`
	TotalChunks int     `json:"total_chunks"`
	Skip        int     `json:"skip"`
	Limit       int     `json:"limit"`
	HasMore     bool    `json:"has_more"`
	Chunks      []Chunk `json:"chunks"`
}

// UploadResult is the 202 body of an accepted upload.
type UploadResult struct {
	JobID          string `json:"job_id"`
	DocumentID     int64  `json:"document_id"`
	Status         string `json:"status"`
	CheckStatusURL string `json:"check_status_url"`
	DocumentURL    string `json:"document_url"`
}

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

type Job struct {
	JobID       string     `json:"job_id"`
	DocumentID  int64      `json:"document_id"`
	Status      string     `json:"status"`
	Stage       string     `json:"stage"`
	Filename    string     `json:"filename"`
	CreatedAt   string     `json:"created_at"`
	CompletedAt *string    `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Result      *JobResult `json:"result,omitempty"`
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.Status == "completed" || j.Status == "failed"
}

type SearchRequest struct {
	Query      string `json:"query"`
	K          int    `json:"k,omitempty"`
	DocumentID *int64 `json:"document_id,omitempty"`
}

type SearchResult struct {
	Chunk      Chunk   `json:"chunk"`
	DocumentID int64   `json:"document_id"`
	Distance   float64 `json:"distance"`
	Score      float64 `json:"score"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}
