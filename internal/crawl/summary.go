package crawl

import (
	"strings"
)

// maxSummaryLength bounds generated summaries.
const maxSummaryLength = 500

// sourceSampleLength is how much of a document feeds the source summary.
const sourceSampleLength = 5000

// Summarizer produces short descriptions for sources and code examples.
// The default implementation is heuristic; an LLM-backed one can be
// plugged in without changing the orchestrator.
type Summarizer interface {
	SummarizeSource(sourceID, content string) string
	SummarizeCode(code, contextBefore, contextAfter string) string
}

// HeuristicSummarizer derives summaries from the text itself: the first
// non-header paragraph for sources, the nearest preceding prose for
// code examples.
type HeuristicSummarizer struct{}

var _ Summarizer = (*HeuristicSummarizer)(nil)

// SummarizeSource returns the first substantial paragraph of the
// content, truncated, or a generic fallback.
func (HeuristicSummarizer) SummarizeSource(sourceID, content string) string {
	if len(content) > sourceSampleLength {
		content = content[:sourceSampleLength]
	}

	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" || strings.HasPrefix(para, "#") || strings.HasPrefix(para, "```") {
			continue
		}
		return truncate(strings.Join(strings.Fields(para), " "), maxSummaryLength)
	}

	return "Content from " + sourceID
}

// SummarizeCode returns the last prose line before the block, falling
// back to the first line after it.
func (HeuristicSummarizer) SummarizeCode(code, contextBefore, contextAfter string) string {
	if s := lastProseLine(contextBefore); s != "" {
		return truncate(s, maxSummaryLength)
	}
	if s := firstProseLine(contextAfter); s != "" {
		return truncate(s, maxSummaryLength)
	}
	return "Code example"
}

func lastProseLine(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if s := proseLine(lines[i]); s != "" {
			return s
		}
	}
	return ""
}

func firstProseLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if s := proseLine(line); s != "" {
			return s
		}
	}
	return ""
}

func proseLine(line string) string {
	s := strings.TrimSpace(line)
	if s == "" || strings.HasPrefix(s, "```") {
		return ""
	}
	return strings.TrimSpace(strings.TrimLeft(s, "#"))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
