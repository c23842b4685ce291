// Package errors provides structured error handling for crawlbridge.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Validation errors
//   - 3XX: Backend errors (document store, search timeouts)
//   - 4XX: External service errors (crawler, knowledge graph)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryBackend indicates document store and search backend errors.
	CategoryBackend Category = "BACKEND"
	// CategoryExternal indicates crawler and knowledge graph errors.
	CategoryExternal Category = "EXTERNAL"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigMissing = "ERR_102_CONFIG_MISSING"

	// Validation errors (200-299)
	ErrCodeQueryEmpty       = "ERR_201_QUERY_EMPTY"
	ErrCodeMatchCountRange  = "ERR_202_MATCH_COUNT_RANGE"
	ErrCodeSourceFilterLong = "ERR_203_SOURCE_FILTER_TOO_LONG"
	ErrCodeInvalidURL       = "ERR_204_INVALID_URL"
	ErrCodeInvalidCommand   = "ERR_205_INVALID_COMMAND"

	// Backend errors (300-399)
	ErrCodeBackendTimeout  = "ERR_301_BACKEND_TIMEOUT"
	ErrCodeBackendQuery    = "ERR_302_BACKEND_QUERY"
	ErrCodeMalformedHit    = "ERR_303_MALFORMED_HIT"
	ErrCodeAllBackendsLost = "ERR_304_ALL_BACKENDS_FAILED"

	// External service errors (400-499)
	ErrCodeCrawlerUnavailable = "ERR_401_CRAWLER_UNAVAILABLE"
	ErrCodeGraphUnavailable   = "ERR_402_GRAPH_UNAVAILABLE"
	ErrCodeGraphQuery         = "ERR_403_GRAPH_QUERY"
	ErrCodeSitemapFetch       = "ERR_404_SITEMAP_FETCH"
	ErrCodeWebSearch          = "ERR_405_WEB_SEARCH"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeRerankFailed = "ERR_502_RERANK_FAILED"
	ErrCodeStoreWrite   = "ERR_503_STORE_WRITE"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryValidation
	case '3':
		return CategoryBackend
	case '4':
		return CategoryExternal
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from error code.
// Backend timeouts degrade rather than abort, so they are warnings.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeBackendTimeout, ErrCodeMalformedHit, ErrCodeRerankFailed:
		return SeverityWarning
	case ErrCodeConfigInvalid, ErrCodeConfigMissing:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code
// may be retried by the caller. Retry policy itself lives outside this core.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeBackendTimeout, ErrCodeCrawlerUnavailable, ErrCodeGraphUnavailable, ErrCodeSitemapFetch, ErrCodeWebSearch:
		return true
	default:
		return false
	}
}
