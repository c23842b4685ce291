package crawl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeSource(t *testing.T) {
	var s HeuristicSummarizer

	t.Run("first paragraph", func(t *testing.T) {
		md := "# Docs\n\nThe library does things.\n\nMore detail."
		assert.Equal(t, "The library does things.", s.SummarizeSource("a.test", md))
	})

	t.Run("skips fences and headers", func(t *testing.T) {
		md := "## Install\n\n```sh\npip install x\n```\n\nActual description here."
		assert.Equal(t, "Actual description here.", s.SummarizeSource("a.test", md))
	})

	t.Run("fallback", func(t *testing.T) {
		assert.Equal(t, "Content from a.test", s.SummarizeSource("a.test", "# Only headers\n\n## Here"))
	})

	t.Run("collapses whitespace", func(t *testing.T) {
		md := "One\nparagraph  spread\nover lines."
		assert.Equal(t, "One paragraph spread over lines.", s.SummarizeSource("a.test", md))
	})

	t.Run("truncates", func(t *testing.T) {
		md := strings.Repeat("w ", 600)
		got := s.SummarizeSource("a.test", md)
		assert.Len(t, got, maxSummaryLength)
		assert.True(t, strings.HasSuffix(got, "..."))
	})
}

func TestSummarizeCode(t *testing.T) {
	var s HeuristicSummarizer

	t.Run("prose before", func(t *testing.T) {
		before := "## Usage\n\nCreate a client first.\n"
		got := s.SummarizeCode("code", before, "And then run it.")
		assert.Equal(t, "Create a client first.", got)
	})

	t.Run("falls back to prose after", func(t *testing.T) {
		got := s.SummarizeCode("code", "```\n", "\nThis prints the result.")
		assert.Equal(t, "This prints the result.", got)
	})

	t.Run("header text counts", func(t *testing.T) {
		got := s.SummarizeCode("code", "### Example\n", "")
		assert.Equal(t, "Example", got)
	})

	t.Run("fallback", func(t *testing.T) {
		assert.Equal(t, "Code example", s.SummarizeCode("code", "", ""))
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
}
