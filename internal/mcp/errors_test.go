package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	cberrors "github.com/crawlbridge/crawlbridge/internal/errors"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, 0},
		{"validation", cberrors.Validation("query cannot be empty"), ErrCodeInvalidParams},
		{"backend timeout", cberrors.BackendTimeout("vector", nil), ErrCodeTimeout},
		{"backend query", cberrors.New(cberrors.ErrCodeBackendQuery, "boom", nil), ErrCodeBackendUnavailable},
		{"all backends", cberrors.New(cberrors.ErrCodeAllBackendsLost, "both failed", nil), ErrCodeBackendUnavailable},
		{"graph unavailable", cberrors.ExternalService(cberrors.ErrCodeGraphUnavailable, "down", nil), ErrCodeGraphUnavailable},
		{"graph query", cberrors.New(cberrors.ErrCodeGraphQuery, "bad cypher", nil), ErrCodeGraphUnavailable},
		{"crawler", cberrors.ExternalService(cberrors.ErrCodeCrawlerUnavailable, "no content", nil), ErrCodeCrawlerFailed},
		{"internal", cberrors.Internal("oops", nil), ErrCodeInternalError},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"plain", errors.New("plain failure"), ErrCodeInternalError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MapError(tc.err)
			if tc.err == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tc.code, got.Code)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestMapError_MessagePassthrough(t *testing.T) {
	got := MapError(cberrors.Validation("match_count out of range"))
	assert.Equal(t, "match_count out of range", got.Message)
}

func TestMCPError_Error(t *testing.T) {
	err := &MCPError{Code: ErrCodeInvalidParams, Message: "bad input"}
	assert.Equal(t, fmt.Sprintf("MCP error %d: bad input", ErrCodeInvalidParams), err.Error())
}
