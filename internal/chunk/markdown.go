// Package chunk splits markdown documents into storage-sized pieces and
// derives per-chunk section metadata.
package chunk

import (
	"strings"
)

// DefaultMaxChunkSize is the default maximum characters per chunk.
const DefaultMaxChunkSize = 5000

// boundaryThreshold is the fraction of the window a natural split point
// must be past before it is preferred over a hard cut. Splitting earlier
// would produce degenerate tiny chunks.
const boundaryThreshold = 0.3

// SplitMarkdown splits text into chunks of at most maxChunkSize
// characters, preferring to break before code fences, then at paragraph
// breaks, then after sentence boundaries. Each emitted chunk is trimmed
// of surrounding whitespace; chunks that trim to nothing are dropped.
//
// A window with no usable natural boundary is hard-cut at maxChunkSize,
// which can land inside a code fence or a word. That is accepted
// behavior, kept for parity with stored data produced by earlier
// versions of the pipeline.
func SplitMarkdown(text string, maxChunkSize int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}

	var chunks []string
	start := 0
	textLen := len(text)
	threshold := float64(maxChunkSize) * boundaryThreshold

	for start < textLen {
		end := start + maxChunkSize

		// Tail shorter than the window is emitted whole.
		if end >= textLen {
			if tail := strings.TrimSpace(text[start:]); tail != "" {
				chunks = append(chunks, tail)
			}
			break
		}

		window := text[start:end]

		// Split before the last code fence, provided it is far enough
		// into the window. A fence too close to the start falls through
		// to the paragraph check instead.
		if fence := strings.LastIndex(window, "```"); fence != -1 && float64(fence) > threshold {
			end = start + fence
		} else if strings.Contains(window, "\n\n") {
			// A paragraph break claims the window even when it is too
			// early to use, in which case the window is hard-cut.
			if brk := strings.LastIndex(window, "\n\n"); float64(brk) > threshold {
				end = start + brk
			}
		} else if strings.Contains(window, ". ") {
			// Sentence boundary: split just after the period.
			if period := strings.LastIndex(window, ". "); float64(period) > threshold {
				end = start + period + 1
			}
		}

		if piece := strings.TrimSpace(text[start:end]); piece != "" {
			chunks = append(chunks, piece)
		}
		start = end
	}

	return chunks
}
