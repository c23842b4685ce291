package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crawlbridge/crawlbridge/internal/embed"
	"github.com/crawlbridge/crawlbridge/internal/errors"
	"github.com/crawlbridge/crawlbridge/internal/search"
)

//go:embed schema.sql
var schemaSQL string

// DefaultInsertBatchSize is rows per batched insert.
const DefaultInsertBatchSize = 20

// PostgresStore implements DocumentStore on Postgres with pgvector.
type PostgresStore struct {
	pool      *pgxpool.Pool
	embedder  embed.Embedder
	batchSize int
	logger    *slog.Logger
}

var _ DocumentStore = (*PostgresStore)(nil)

// NewPostgresStore connects to the database and verifies reachability.
func NewPostgresStore(ctx context.Context, databaseURL string, embedder embed.Embedder, batchSize int, logger *slog.Logger) (*PostgresStore, error) {
	if batchSize <= 0 {
		batchSize = DefaultInsertBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "invalid database URL", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.ExternalService(errors.ErrCodeBackendQuery, "failed to create connection pool", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.ExternalService(errors.ErrCodeBackendQuery, "database unreachable", err)
	}

	return &PostgresStore{
		pool:      pool,
		embedder:  embedder,
		batchSize: batchSize,
		logger:    logger,
	}, nil
}

// InitSchema creates tables and indexes if they do not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return errors.New(errors.ErrCodeStoreWrite, "failed to initialize schema", err)
	}
	return nil
}

// AddDocuments replaces stored chunks for the documents' URLs and
// inserts the new chunks in batches, embedding each batch in one call.
func (s *PostgresStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	if err := s.deleteByURL(ctx, "crawled_pages", urlSet(docsURLs(docs))); err != nil {
		return err
	}

	for start := 0; start < len(docs); start += s.batchSize {
		end := start + s.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := s.insertDocumentBatch(ctx, docs[start:end]); err != nil {
			return err
		}
	}

	s.logger.Info("documents stored",
		slog.Int("chunks", len(docs)),
		slog.Int("batch_size", s.batchSize))
	return nil
}

func (s *PostgresStore) insertDocumentBatch(ctx context.Context, docs []Document) error {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return errors.New(errors.ErrCodeStoreWrite, "failed to embed document batch", err)
	}

	batch := &pgx.Batch{}
	for i, d := range docs {
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return errors.Internal("failed to encode document metadata", err)
		}
		batch.Queue(
			`INSERT INTO crawled_pages (url, chunk_number, content, metadata, source_id, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6::vector)`,
			d.URL, d.ChunkNumber, d.Content, meta, d.SourceID, vectorLiteral(vecs[i]),
		)
	}

	if err := s.sendBatch(ctx, batch); err != nil {
		return errors.New(errors.ErrCodeStoreWrite, "failed to insert document batch", err)
	}
	return nil
}

// AddCodeExamples replaces stored code examples for the examples' URLs
// and inserts the new ones in batches. Embeddings are computed over the
// code joined with its summary, which retrieves better than code alone.
func (s *PostgresStore) AddCodeExamples(ctx context.Context, examples []CodeExample) error {
	if len(examples) == 0 {
		return nil
	}

	urls := make([]string, len(examples))
	for i, e := range examples {
		urls[i] = e.URL
	}
	if err := s.deleteByURL(ctx, "code_examples", urlSet(urls)); err != nil {
		return err
	}

	for start := 0; start < len(examples); start += s.batchSize {
		end := start + s.batchSize
		if end > len(examples) {
			end = len(examples)
		}
		if err := s.insertCodeExampleBatch(ctx, examples[start:end]); err != nil {
			return err
		}
	}

	s.logger.Info("code examples stored", slog.Int("examples", len(examples)))
	return nil
}

func (s *PostgresStore) insertCodeExampleBatch(ctx context.Context, examples []CodeExample) error {
	texts := make([]string, len(examples))
	for i, e := range examples {
		texts[i] = e.Content + "\n\nSummary: " + e.Summary
	}

	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return errors.New(errors.ErrCodeStoreWrite, "failed to embed code example batch", err)
	}

	batch := &pgx.Batch{}
	for i, e := range examples {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return errors.Internal("failed to encode code example metadata", err)
		}
		batch.Queue(
			`INSERT INTO code_examples (url, chunk_number, content, summary, metadata, source_id, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7::vector)`,
			e.URL, e.ChunkNumber, e.Content, e.Summary, meta, e.SourceID, vectorLiteral(vecs[i]),
		)
	}

	if err := s.sendBatch(ctx, batch); err != nil {
		return errors.New(errors.ErrCodeStoreWrite, "failed to insert code example batch", err)
	}
	return nil
}

// UpsertSource creates or updates the aggregate record for a source.
func (s *PostgresStore) UpsertSource(ctx context.Context, sourceID, summary string, totalWords int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sources (source_id, summary, total_words)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (source_id) DO UPDATE
		 SET summary = EXCLUDED.summary,
		     total_words = EXCLUDED.total_words,
		     updated_at = now()`,
		sourceID, summary, totalWords,
	)
	if err != nil {
		return errors.New(errors.ErrCodeStoreWrite, "failed to upsert source", err)
	}
	return nil
}

// GetSources lists all known sources ordered by source id.
func (s *PostgresStore) GetSources(ctx context.Context) ([]Source, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_id, COALESCE(summary, ''), COALESCE(total_words, 0), created_at, updated_at
		 FROM sources ORDER BY source_id`)
	if err != nil {
		return nil, errors.New(errors.ErrCodeBackendQuery, "failed to list sources", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.SourceID, &src.Summary, &src.TotalWords, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, errors.New(errors.ErrCodeBackendQuery, "failed to scan source row", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// SearchDocuments runs cosine similarity search over crawled pages.
func (s *PostgresStore) SearchDocuments(ctx context.Context, query string, matchCount int, sourceFilter string) ([]search.SearchHit, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.New(errors.ErrCodeBackendQuery, "failed to embed query", err)
	}

	sql := `SELECT id, url, chunk_number, content, metadata, source_id,
	               1 - (embedding <=> $1::vector) AS similarity
	        FROM crawled_pages`
	args := []any{vectorLiteral(vec)}
	if sourceFilter != "" {
		sql += ` WHERE source_id = $2`
		args = append(args, sourceFilter)
	}
	sql += fmt.Sprintf(` ORDER BY similarity DESC LIMIT %d`, matchCount)

	return s.queryHits(ctx, sql, args, false)
}

// SearchKeyword runs ILIKE substring search over crawled pages.
// Keyword rows have no vector score; similarity is left zero for the
// fusion engine to assign.
func (s *PostgresStore) SearchKeyword(ctx context.Context, query string, matchCount int, sourceFilter string) ([]search.SearchHit, error) {
	sql := `SELECT id, url, chunk_number, content, metadata, source_id
	        FROM crawled_pages
	        WHERE content ILIKE $1`
	args := []any{"%" + query + "%"}
	if sourceFilter != "" {
		sql += ` AND source_id = $2`
		args = append(args, sourceFilter)
	}
	sql += fmt.Sprintf(` LIMIT %d`, matchCount)

	return s.queryHits(ctx, sql, args, true)
}

// SearchCodeExamples runs cosine similarity search over code examples.
func (s *PostgresStore) SearchCodeExamples(ctx context.Context, query string, matchCount int, sourceFilter string) ([]search.SearchHit, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.New(errors.ErrCodeBackendQuery, "failed to embed query", err)
	}

	sql := `SELECT id, url, chunk_number, content || E'\n\nSummary: ' || summary, metadata, source_id,
	               1 - (embedding <=> $1::vector) AS similarity
	        FROM code_examples`
	args := []any{vectorLiteral(vec)}
	if sourceFilter != "" {
		sql += ` WHERE source_id = $2`
		args = append(args, sourceFilter)
	}
	sql += fmt.Sprintf(` ORDER BY similarity DESC LIMIT %d`, matchCount)

	return s.queryHits(ctx, sql, args, false)
}

// SearchCodeExamplesKeyword matches the query against both the code and
// its summary.
func (s *PostgresStore) SearchCodeExamplesKeyword(ctx context.Context, query string, matchCount int, sourceFilter string) ([]search.SearchHit, error) {
	sql := `SELECT id, url, chunk_number, content || E'\n\nSummary: ' || summary, metadata, source_id
	        FROM code_examples
	        WHERE (content ILIKE $1 OR summary ILIKE $1)`
	args := []any{"%" + query + "%"}
	if sourceFilter != "" {
		sql += ` AND source_id = $2`
		args = append(args, sourceFilter)
	}
	sql += fmt.Sprintf(` LIMIT %d`, matchCount)

	return s.queryHits(ctx, sql, args, true)
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) queryHits(ctx context.Context, sql string, args []any, keywordOnly bool) ([]search.SearchHit, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeBackendQuery, "search query failed", err)
	}
	defer rows.Close()

	var hits []search.SearchHit
	for rows.Next() {
		var (
			id   int64
			hit  search.SearchHit
			meta []byte
		)
		dest := []any{&id, &hit.URL, &hit.ChunkNumber, &hit.Content, &meta, &hit.SourceID}
		if !keywordOnly {
			dest = append(dest, &hit.Similarity)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.New(errors.ErrCodeBackendQuery, "failed to scan search row", err)
		}
		hit.ID = strconv.FormatInt(id, 10)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &hit.Metadata); err != nil {
				s.logger.Warn("dropping unreadable hit metadata",
					slog.String("id", hit.ID),
					slog.String("error", err.Error()))
			}
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (s *PostgresStore) deleteByURL(ctx context.Context, table string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE url = ANY($1)`, table), urls)
	if err != nil {
		return errors.New(errors.ErrCodeStoreWrite, "failed to delete existing rows", err)
	}
	return nil
}

func (s *PostgresStore) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// vectorLiteral renders a vector in pgvector's input format.
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func docsURLs(docs []Document) []string {
	urls := make([]string, len(docs))
	for i, d := range docs {
		urls[i] = d.URL
	}
	return urls
}

// urlSet deduplicates while preserving first-seen order.
func urlSet(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := urls[:0:0]
	for _, u := range urls {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
