package chunk

import (
	"regexp"
	"strings"
)

// atxHeaderRe matches ATX-style markdown headers at line starts.
var atxHeaderRe = regexp.MustCompile(`(?m)^(#+)\s+(.+)$`)

// SectionInfo summarizes the headers and size of one chunk.
type SectionInfo struct {
	// Headers is a "; "-joined list of "hashes text" pairs for every
	// ATX header in the chunk, in document order.
	Headers string `json:"headers"`
	// CharCount is the length of the chunk in bytes.
	CharCount int `json:"char_count"`
	// WordCount is the number of whitespace-separated tokens.
	WordCount int `json:"word_count"`
}

// ExtractSectionInfo derives header and size statistics from a chunk.
// An empty chunk yields an empty header summary and zero counts.
func ExtractSectionInfo(chunk string) SectionInfo {
	matches := atxHeaderRe.FindAllStringSubmatch(chunk, -1)

	var headers []string
	for _, m := range matches {
		headers = append(headers, m[1]+" "+m[2])
	}

	return SectionInfo{
		Headers:   strings.Join(headers, "; "),
		CharCount: len(chunk),
		WordCount: len(strings.Fields(chunk)),
	}
}
