//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloo-solutions/ragdocs/internal/api/handlers"
	"github.com/cloo-solutions/ragdocs/internal/chunking"
	"github.com/cloo-solutions/ragdocs/internal/convert"
	"github.com/cloo-solutions/ragdocs/internal/database"
	"github.com/cloo-solutions/ragdocs/internal/jobs"
	"github.com/cloo-solutions/ragdocs/internal/repository"
	"github.com/cloo-solutions/ragdocs/internal/server"
	"github.com/cloo-solutions/ragdocs/internal/service"
	"github.com/cloo-solutions/ragdocs/internal/storage"
	"github.com/cloo-solutions/ragdocs/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	Ingestion    *service.IngestionService
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres and RustFS and serves the full API on a free
// port. Embeddings come from testutil.HashEmbedder so no provider is needed.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     s3C.AccessKey,
		SecretAccessKey: s3C.SecretKey,
		Bucket:          "e2e-originals",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		S3Client:   s3Client,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.ServerURL, env.ServerCloser = env.startServer(port)

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		_ = e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		_ = e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		_ = os.RemoveAll(e.BinaryDir)
	}
}

func (e *E2ETestEnv) startServer(port int) (string, func()) {
	t := e.T
	log := zerolog.Nop()

	docs := repository.NewDocumentRepository(e.Pool, log)
	chunks := repository.NewChunkRepository(e.Pool)
	embedder := &testutil.HashEmbedder{}

	chunker, err := chunking.New("cl100k_base", log)
	if err != nil {
		t.Fatalf("failed to load tokenizer: %v", err)
	}

	tracker := jobs.NewTracker(jobs.TrackerConfig{}, log)
	e.Ingestion = service.NewIngestionService(service.IngestionDeps{
		Documents: docs,
		TxRunner:  repository.NewTxRunner(e.Pool, log),
		Converter: convert.New(),
		Chunker:   chunker,
		Embedder:  embedder,
		Tracker:   tracker,
		Archive:   e.S3Client,
		Logger:    log,
	}, service.IngestionConfig{UploadDir: t.TempDir(), MaxConcurrentJobs: 2})

	router := server.NewRouter(server.RouterConfig{
		Logger:              log,
		HealthHandler:       handlers.NewHealthHandler(e.Pool, "e2e"),
		DocumentHandler:     handlers.NewDocumentHandler(e.Ingestion, service.NewDocumentService(docs, chunks, e.S3Client, log)),
		SearchHandler:       handlers.NewSearchHandler(service.NewSearchService(docs, chunks, embedder, database.VectorDimension, log)),
		ConversationHandler: handlers.NewConversationHandler(service.NewConversationService(repository.NewConversationRepository(e.Pool), log)),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = e.Ingestion.Shutdown(ctx)
	}
}

// BuildBinaries builds the ragdocs client binary
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "ragdocs-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "ragdocs"), "./cmd/ragdocs")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build ragdocs: %v\n%s", err, out)
	}
}

// RunCLI runs the ragdocs client against the test server
func (e *E2ETestEnv) RunCLI(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "ragdocs"), args...)
	cmd.Dir = e.T.TempDir()
	cmd.Env = append(os.Environ(),
		"RAGDOCS_API_URL="+e.ServerURL,
		"XDG_CONFIG_HOME="+e.T.TempDir(),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error,omitempty"`
}

// Decode unmarshals the data envelope into v, failing the test on error.
func (r *APIResponse) Decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Data, v); err != nil {
		t.Fatalf("failed to decode response data %s: %v", r.Data, err)
	}
}

func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil)
}

func (e *E2ETestEnv) Post(path string, body any) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body)
}

func (e *E2ETestEnv) Put(path string, body any) (*APIResponse, error) {
	return e.doRequest(http.MethodPut, path, body)
}

func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body any) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return e.send(req)
}

// Upload posts content as the multipart "file" part of an upload.
func (e *E2ETestEnv) Upload(filename string, content []byte, query string) (*APIResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	path := "/documents/upload"
	if query != "" {
		path += "?" + query
	}
	req, err := http.NewRequest(http.MethodPost, e.ServerURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return e.send(req)
}

func (e *E2ETestEnv) send(req *http.Request) (*APIResponse, error) {
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := &APIResponse{StatusCode: resp.StatusCode}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, apiResp); err != nil {
			if resp.StatusCode >= 400 {
				return apiResp, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
			}
			return nil, err
		}
	}

	if resp.StatusCode >= 400 {
		return apiResp, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return apiResp, nil
}

// WaitForJob polls the job until it reaches a terminal status.
func (e *E2ETestEnv) WaitForJob(jobID string, timeout time.Duration) map[string]any {
	e.T.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := e.Get("/jobs/" + jobID)
		if err != nil {
			e.T.Fatalf("failed to poll job: %v", err)
		}
		var job map[string]any
		resp.Decode(e.T, &job)
		if status := job["status"]; status == "completed" || status == "failed" {
			return job
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatalf("job %s did not finish within %v", jobID, timeout)
	return nil
}

// DownloadFile fetches a presigned URL
func (e *E2ETestEnv) DownloadFile(downloadURL string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(downloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// SHA256Sum calculates SHA256 hash of data
func SHA256Sum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
