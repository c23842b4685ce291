package chunk

// Chunk is one storage-ready piece of a crawled document.
type Chunk struct {
	SourceURL     string `json:"source_url"`
	ChunkIndex    int    `json:"chunk_index"`
	Text          string `json:"text"`
	CharCount     int    `json:"char_count"`
	WordCount     int    `json:"word_count"`
	HeaderSummary string `json:"header_summary"`
}

// BuildChunks splits a document and attaches section metadata to each
// piece. Chunk indexes are 0-based and sequential per source.
func BuildChunks(sourceURL, markdown string, maxChunkSize int) []Chunk {
	pieces := SplitMarkdown(markdown, maxChunkSize)

	chunks := make([]Chunk, 0, len(pieces))
	for i, text := range pieces {
		info := ExtractSectionInfo(text)
		chunks = append(chunks, Chunk{
			SourceURL:     sourceURL,
			ChunkIndex:    i,
			Text:          text,
			CharCount:     info.CharCount,
			WordCount:     info.WordCount,
			HeaderSummary: info.Headers,
		})
	}
	return chunks
}
