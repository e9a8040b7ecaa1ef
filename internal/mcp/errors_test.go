package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
)

func TestMapError_NilError(t *testing.T) {
	// Given: nil error
	var err error

	// When: mapping the error
	result := MapError(err)

	// Then: returns nil
	assert.Nil(t, result)
}

func TestMapError_AppErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantMessage string
	}{
		{
			name:        "invalid parameter keeps its message",
			err:         apperrors.InvalidParameter("query", "query must not be empty"),
			wantCode:    ErrCodeInvalidParams,
			wantMessage: "query must not be empty",
		},
		{
			name:        "adapter timeout",
			err:         apperrors.AdapterTimeout("vector", context.DeadlineExceeded),
			wantCode:    ErrCodeTimeout,
			wantMessage: "vector source timed out",
		},
		{
			name:        "adapter failure",
			err:         apperrors.AdapterError("lexical", errors.New("index corrupt at /var/data")),
			wantCode:    ErrCodeSourceFailed,
			wantMessage: "lexical source failed",
		},
		{
			name:        "all sources unavailable carries the suggestion",
			err:         apperrors.AllSourcesUnavailable(errors.New("boom")),
			wantCode:    ErrCodeUnavailable,
			wantMessage: "search is temporarily unavailable. Retry the request in a moment.",
		},
		{
			name:        "internal error is generic",
			err:         apperrors.InternalError("fusion failed", errors.New("nil payload")),
			wantCode:    ErrCodeInternalError,
			wantMessage: "Internal server error.",
		},
		{
			name:        "wrapped app error",
			err:         fmt.Errorf("search: %w", apperrors.InvalidParameter("mode", "unknown mode")),
			wantCode:    ErrCodeInvalidParams,
			wantMessage: "unknown mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When: mapping the error
			result := MapError(tt.err)

			// Then: code and message match, causes never leak
			require.NotNil(t, result)
			assert.Equal(t, tt.wantCode, result.Code)
			assert.Equal(t, tt.wantMessage, result.Message)
			assert.NotContains(t, result.Message, "/var/data")
		})
	}
}

func TestMapError_DeadlineExceeded(t *testing.T) {
	// Given: deadline exceeded error
	err := context.DeadlineExceeded

	// When: mapping the error
	result := MapError(err)

	// Then: returns timeout error
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeTimeout, result.Code)
	assert.Contains(t, result.Message, "timed out")
}

func TestMapError_Canceled(t *testing.T) {
	// Given: context canceled error
	err := context.Canceled

	// When: mapping the error
	result := MapError(err)

	// Then: returns timeout error
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeTimeout, result.Code)
	assert.Contains(t, result.Message, "canceled")
}

func TestMapError_UnknownError(t *testing.T) {
	// Given: an error with internal details
	err := errors.New("dial tcp 10.0.0.3:5432: connection refused")

	// When: mapping the error
	result := MapError(err)

	// Then: returns a generic internal error
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInternalError, result.Code)
	assert.Equal(t, "Internal server error.", result.Message)
}

func TestMapError_MCPErrorPassesThrough(t *testing.T) {
	// Given: an error that is already an MCP error
	original := NewInvalidParamsError("limit must be positive")

	// When: mapping it
	result := MapError(fmt.Errorf("handler: %w", original))

	// Then: it is returned unchanged
	assert.Same(t, original, result)
}

func TestMCPError_Error(t *testing.T) {
	// Given: an MCP error
	err := NewMethodNotFoundError("reindex")

	// When: formatting it
	msg := err.Error()

	// Then: code and message are included
	assert.Equal(t, "MCP error -32601: Tool 'reindex' not found.", msg)
}
