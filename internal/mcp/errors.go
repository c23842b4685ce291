// Package mcp exposes the bridge's tools over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	cberrors "github.com/crawlbridge/crawlbridge/internal/errors"
)

// Custom MCP error codes for the bridge.
const (
	// ErrCodeBackendUnavailable indicates a search backend failed.
	ErrCodeBackendUnavailable = -32001

	// ErrCodeCrawlerFailed indicates the crawler service failed.
	ErrCodeCrawlerFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeGraphUnavailable indicates the knowledge graph is down or
	// disabled.
	ErrCodeGraphUnavailable = -32004

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

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an invalid-params error with a custom message.
func NewInvalidParamsError(message string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: message}
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var be *cberrors.BridgeError
	if errors.As(err, &be) {
		return mapBridgeError(be)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}

	return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
}

func mapBridgeError(be *cberrors.BridgeError) *MCPError {
	switch be.Category {
	case cberrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: be.Message}
	case cberrors.CategoryConfig:
		return &MCPError{Code: ErrCodeInvalidRequest, Message: be.Message}
	case cberrors.CategoryBackend:
		switch be.Code {
		case cberrors.ErrCodeBackendTimeout:
			return &MCPError{Code: ErrCodeTimeout, Message: be.Message}
		default:
			return &MCPError{Code: ErrCodeBackendUnavailable, Message: be.Message}
		}
	case cberrors.CategoryExternal:
		switch be.Code {
		case cberrors.ErrCodeGraphUnavailable, cberrors.ErrCodeGraphQuery:
			return &MCPError{Code: ErrCodeGraphUnavailable, Message: be.Message}
		default:
			return &MCPError{Code: ErrCodeCrawlerFailed, Message: be.Message}
		}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: be.Message}
	}
}
