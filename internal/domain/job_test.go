package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	now := time.Now()
	job := NewJob("job1", 42, "a.pdf", now)

	assert.Equal(t, "job1", job.ID)
	assert.Equal(t, int64(42), job.DocumentID)
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.Equal(t, StageQueued, job.Stage)
	assert.Equal(t, now, job.CreatedAt)
	assert.Nil(t, job.CompletedAt)
	assert.Nil(t, job.Result)
}

func TestStageOrder(t *testing.T) {
	order := []Stage{StageQueued, StageConverting, StageChunking, StageEmbedding, StagePersisting, StageCompleted}

	for i := 0; i < len(order)-1; i++ {
		assert.True(t, order[i].CanAdvanceTo(order[i+1]), "%s -> %s", order[i], order[i+1])
		assert.True(t, order[i].CanAdvanceTo(StageFailed), "%s -> failed", order[i])
		if i+2 < len(order) {
			assert.False(t, order[i].CanAdvanceTo(order[i+2]), "%s skips %s", order[i], order[i+1])
		}
	}

	assert.False(t, StageCompleted.CanAdvanceTo(StageFailed))
	assert.False(t, StageFailed.CanAdvanceTo(StageConverting))
	assert.False(t, StageChunking.CanAdvanceTo(StageConverting))
}

func TestStageErrorCode(t *testing.T) {
	tests := []struct {
		stage Stage
		code  string
	}{
		{StageConverting, ErrCodeConversion},
		{StageChunking, ErrCodeChunking},
		{StageEmbedding, ErrCodeEmbedding},
		{StagePersisting, ErrCodePersistence},
		{StageQueued, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			err := NewStageError(tt.stage, errors.New("boom"))
			var se *StageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.code, se.Code())
			assert.Equal(t, string(tt.stage)+": boom", err.Error())
		})
	}

	assert.Nil(t, NewStageError(StageChunking, nil))
}

func TestJobClone(t *testing.T) {
	now := time.Now()
	job := NewJob("job1", 1, "a.pdf", now)
	job.CompletedAt = &now
	job.Result = &JobResult{ChunksPreview: []string{"a", "b"}}

	c := job.Clone()
	c.Result.ChunksPreview[0] = "changed"
	later := now.Add(time.Hour)
	*c.CompletedAt = later

	assert.Equal(t, "a", job.Result.ChunksPreview[0])
	assert.Equal(t, now, *job.CompletedAt)
}

func TestJobStatusIsTerminal(t *testing.T) {
	assert.False(t, JobStatusProcessing.IsTerminal())
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
}
