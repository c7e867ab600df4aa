package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cloo-solutions/ragdocs/internal/config"
	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "1", want: 1},
		{raw: "42", want: 42},
		{raw: "0", wantErr: true},
		{raw: "-3", wantErr: true},
		{raw: "abc", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseID(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDocumentRowJSON(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	doc := &domain.Document{
		ID:           7,
		Filename:     "report.pdf",
		Status:       domain.DocumentStatusFailed,
		ErrorMessage: "conversion failed",
		FileSize:     2048,
		ChunkSize:    512,
		CreatedAt:    created,
	}

	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, toDocumentRow(doc)))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "report.pdf", got["filename"])
	assert.Equal(t, "failed", got["status"])
	assert.Equal(t, "conversion failed", got["error_message"])
	assert.Equal(t, "2025-03-01T11:00:00Z", got["created_at"])
	assert.Contains(t, buf.String(), "\n  \"id\": 7")
}

func TestCommandTree(t *testing.T) {
	tests := []struct {
		cmd  *cobra.Command
		subs []string
	}{
		{cmd: DocumentsCmd(), subs: []string{"list", "get", "delete", "chunks"}},
		{cmd: MigrateCmd(), subs: []string{"up", "down"}},
		{cmd: IndexCmd(), subs: []string{"ensure", "status"}},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			var got []string
			for _, sub := range tt.cmd.Commands() {
				got = append(got, sub.Name())
			}
			assert.ElementsMatch(t, tt.subs, got)
		})
	}

	assert.NotNil(t, ServeCmd().Flags().Lookup("no-migrate"))
	assert.NotNil(t, IngestCmd().Flags().Lookup("chunk-size"))
}

func TestOptionalComponentsStayNil(t *testing.T) {
	cfg := &config.Config{}

	assert.Nil(t, newEmbedder(cfg, zerolog.Nop()))

	archive, err := newArchive(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, archive)

	cfg.OpenAIAPIKey = "sk-test"
	cfg.EmbeddingModel = "text-embedding-3-small"
	cfg.EmbeddingDimension = 1536
	assert.NotNil(t, newEmbedder(cfg, zerolog.Nop()))
}
