package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentKey(t *testing.T) {
	assert.Equal(t, "documents/42/report.pdf", DocumentKey(42, "report.pdf"))
}

func TestS3Client_GenerateDownloadURL(t *testing.T) {
	ctx := context.Background()
	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		AccessKeyID:     "access",
		SecretAccessKey: "secret",
		Bucket:          "ragdocs",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	url, err := client.GenerateDownloadURL(ctx, DocumentKey(7, "notes.md"))

	require.NoError(t, err)
	assert.Contains(t, url, "http://localhost:9000/ragdocs/documents/7/notes.md")
	assert.Contains(t, url, "X-Amz-Signature=")
}
