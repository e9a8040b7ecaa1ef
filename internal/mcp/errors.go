// Package mcp exposes the search engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeSourceFailed indicates a search source failed.
	ErrCodeSourceFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeUnavailable indicates no search source could answer.
	ErrCodeUnavailable = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors. Messages are taken from
// the user-facing part of an AppError only; causes never reach the client.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return mapAppError(appErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request was canceled.",
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Internal server error.",
		}
	}
}

func mapAppError(err *apperrors.AppError) *MCPError {
	switch err.Code {
	case apperrors.ErrCodeInvalidParameter:
		return &MCPError{Code: ErrCodeInvalidParams, Message: err.Message}
	case apperrors.ErrCodeAdapterTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: err.Message}
	case apperrors.ErrCodeAdapterError:
		return &MCPError{Code: ErrCodeSourceFailed, Message: err.Message}
	case apperrors.ErrCodeAllSourcesUnavailable:
		msg := err.Message
		if err.Suggestion != "" {
			msg += ". " + err.Suggestion + "."
		}
		return &MCPError{Code: ErrCodeUnavailable, Message: msg}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}
