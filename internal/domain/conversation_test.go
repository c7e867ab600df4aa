package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		msg     *Message
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid",
			msg:     &Message{ConversationID: 1, Role: MessageRoleUser, Content: "hi"},
			wantErr: false,
		},
		{
			name:    "nil",
			msg:     nil,
			wantErr: true,
			errMsg:  "cannot be nil",
		},
		{
			name:    "missing conversation",
			msg:     &Message{Role: MessageRoleUser, Content: "hi"},
			wantErr: true,
			errMsg:  "ConversationID",
		},
		{
			name:    "bad role",
			msg:     &Message{ConversationID: 1, Role: "tool", Content: "hi"},
			wantErr: true,
			errMsg:  "Role is invalid",
		},
		{
			name:    "empty content",
			msg:     &Message{ConversationID: 1, Role: MessageRoleAssistant},
			wantErr: true,
			errMsg:  "Content",
		},
		{
			name:    "negative sources",
			msg:     &Message{ConversationID: 1, Role: MessageRoleAssistant, Content: "x", SourcesCount: -1},
			wantErr: true,
			errMsg:  "SourcesCount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage(tt.msg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDomainError(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewDomainErrorWithCause(ErrCodePersistence, "insert chunks", cause)

	assert.Equal(t, "[PERSISTENCE_ERROR] insert chunks: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrCodePersistence, CodeOf(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, ErrCodeInternalError, CodeOf(cause))
	assert.Equal(t, "[NOT_FOUND] document not found", ErrDocumentNotFound.Error())
}
