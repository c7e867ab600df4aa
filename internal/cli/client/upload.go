package client

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

const defaultPollInterval = time.Second

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	var (
		chunkSize    int
		wait         bool
		pollInterval time.Duration
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document for ingestion",
		Long: `Uploads a PDF, DOCX, HTML, markdown or text file. Processing runs in the
background on the server; use --wait to block until the job finishes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			path := "/documents/upload"
			if chunkSize > 0 {
				path += "?" + url.Values{"chunk_size": {strconv.Itoa(chunkSize)}}.Encode()
			}

			var progress ProgressFunc
			if !wantJSON(cmd) {
				progress = uploadProgress(cmd.ErrOrStderr())
			}
			resp, err := api.UploadFile(ctx, path, args[0], progress)
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}

			var result UploadResult
			if err := resp.Decode(&result); err != nil {
				return err
			}

			if !wait {
				if wantJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Accepted: document %d, job %s\n", result.DocumentID, result.JobID)
				fmt.Fprintf(cmd.OutOrStdout(), "Check progress with: ragdocs status %s\n", result.JobID)
				return nil
			}

			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			job, err := waitForJob(ctx, api, result.JobID, pollInterval)
			if err != nil {
				return err
			}
			return printJob(cmd, job)
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Max tokens per chunk (server default if unset)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for processing to finish")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", defaultPollInterval, "How often to poll the job while waiting")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up waiting after this long (0 waits forever)")

	return cmd
}

// StatusCmd creates the status command.
func StatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <job_id>",
		Short: "Show the state of an ingestion job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			job, err := getJob(cmd.Context(), api, args[0])
			if err != nil {
				return err
			}
			return printJob(cmd, job)
		},
	}

	return cmd
}

func getJob(ctx context.Context, api *APIClient, jobID string) (*Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := api.Get(ctx, "/jobs/"+url.PathEscape(jobID))
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	var job Job
	if err := resp.Decode(&job); err != nil {
		return nil, err
	}
	return &job, nil
}

func waitForJob(ctx context.Context, api *APIClient, jobID string, interval time.Duration) (*Job, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := getJob(ctx, api, jobID)
		if err != nil {
			return nil, err
		}
		if job.Done() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up waiting for job %s in stage %s: %w", jobID, job.Stage, ctx.Err())
		case <-ticker.C:
		}
	}
}

func printJob(cmd *cobra.Command, job *Job) error {
	w := cmd.OutOrStdout()
	if wantJSON(cmd) {
		return printJSON(w, job)
	}

	fmt.Fprintf(w, "Job:       %s\n", job.JobID)
	fmt.Fprintf(w, "Document:  %d (%s)\n", job.DocumentID, job.Filename)
	fmt.Fprintf(w, "Status:    %s\n", job.Status)
	fmt.Fprintf(w, "Stage:     %s\n", job.Stage)
	if job.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", job.Error)
	}
	if r := job.Result; r != nil {
		fmt.Fprintf(w, "Chunks:    %d (max %d tokens, %s)\n", r.NumChunks, r.MaxTokensPerChunk, r.Tokenizer)
		fmt.Fprintf(w, "Embedding: %s (%d)\n", r.EmbeddingModel, r.EmbeddingDimension)
		fmt.Fprintf(w, "Markdown:  %d chars\n", r.MarkdownLength)
	}
	if job.Status == "failed" {
		return fmt.Errorf("job %s failed", job.JobID)
	}
	return nil
}

func uploadProgress(w io.Writer) ProgressFunc {
	var last int64 = -1
	return func(current, total int64) {
		if total <= 0 {
			return
		}
		pct := current * 100 / total
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(w, "\rUploading... %d%%", pct)
		if current >= total {
			fmt.Fprintln(w)
		}
	}
}
