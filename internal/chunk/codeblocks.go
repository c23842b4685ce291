package chunk

import (
	"strings"
)

// MinCodeBlockLength filters out short snippets that make poor search
// examples. Only fenced blocks at least this many characters long are
// extracted.
const MinCodeBlockLength = 1000

// codeContextChars is how much surrounding text is captured on each
// side of an extracted block.
const codeContextChars = 1000

// CodeBlock is a fenced code block extracted from markdown, with enough
// surrounding prose to summarize what the code demonstrates.
type CodeBlock struct {
	Code          string `json:"code"`
	Language      string `json:"language"`
	ContextBefore string `json:"context_before"`
	ContextAfter  string `json:"context_after"`
}

// ExtractCodeBlocks finds fenced code blocks of at least
// MinCodeBlockLength characters in a markdown document. The language is
// taken from the fence info string when present. An unclosed final
// fence is ignored.
func ExtractCodeBlocks(markdown string) []CodeBlock {
	var blocks []CodeBlock

	pos := 0
	for {
		open := strings.Index(markdown[pos:], "```")
		if open == -1 {
			break
		}
		open += pos

		closing := strings.Index(markdown[open+3:], "```")
		if closing == -1 {
			break
		}
		closing += open + 3

		inner := markdown[open+3 : closing]

		// First line of the fence may carry the language.
		language := ""
		code := inner
		if nl := strings.IndexByte(inner, '\n'); nl != -1 {
			info := strings.TrimSpace(inner[:nl])
			if info != "" && !strings.ContainsAny(info, " \t") {
				language = info
				code = inner[nl+1:]
			}
		}
		code = strings.TrimSpace(code)

		if len(code) >= MinCodeBlockLength {
			blocks = append(blocks, CodeBlock{
				Code:          code,
				Language:      language,
				ContextBefore: contextBefore(markdown, open),
				ContextAfter:  contextAfter(markdown, closing+3),
			})
		}

		pos = closing + 3
	}

	return blocks
}

func contextBefore(text string, at int) string {
	start := at - codeContextChars
	if start < 0 {
		start = 0
	}
	return strings.TrimSpace(text[start:at])
}

func contextAfter(text string, at int) string {
	if at >= len(text) {
		return ""
	}
	end := at + codeContextChars
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[at:end])
}
