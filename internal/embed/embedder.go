// Package embed turns query and document text into vectors via an
// external embedding service.
package embed

import (
	"context"
	"time"
)

// Default settings for the embedding service.
const (
	DefaultDimensions = 1536
	DefaultBatchSize  = 20
	DefaultTimeout    = 30 * time.Second
)

// Embedder generates embedding vectors for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	// The result has one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector width this embedder produces.
	Dimensions() int

	// Close releases resources.
	Close() error
}

// Config configures an HTTP embedder.
type Config struct {
	// Endpoint is the base URL of the embedding service.
	Endpoint string
	// Model names the embedding model.
	Model string
	// Dimensions is the expected vector width (0 = DefaultDimensions).
	Dimensions int
	// Timeout bounds a single embedding request.
	Timeout time.Duration
}
