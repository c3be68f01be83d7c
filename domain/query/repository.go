package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ragedhq/raged/pkg/logger"
	"github.com/ragedhq/raged/pkg/pgutils"
)

// Repository runs the search queries. All three strategies share one
// projection; only the score expression, the predicate, and the order
// differ. Filters arrive pre-compiled with positional parameters that
// continue the strategy's own numbering.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository creates a new query repository
func NewRepository(pool *pgxpool.Pool, log *slog.Logger) *Repository {
	return &Repository{
		pool: pool,
		log:  log.With(logger.Scope("query-repo")),
	}
}

const resultColumns = `
	d.base_id, c.chunk_index, c.text, c.doc_type, c.source, c.path,
	c.lang, c.repo_id, c.repo_url, c.item_url,
	c.tier1_meta, c.tier2_meta, c.tier3_meta,
	d.collection, d.summary, d.summary_short, d.summary_medium, d.summary_long,
	md5(c.text) AS payload_checksum`

// Semantic runs a cosine kNN search over chunk embeddings. Distance is
// converted to similarity in SQL; minScore filtering happens in the
// service so the reported scores stay comparable across strategies.
func (r *Repository) Semantic(ctx context.Context, collection string, embedding []float32, filter *Compiled, limit int) ([]Result, error) {
	args := []any{pgutils.FormatVector(embedding), collection}
	args = append(args, filter.Args...)
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s,
			1 - (c.embedding <=> $1::vector) AS score
		FROM rag.chunks c
		JOIN rag.documents d ON d.id = c.document_id
		WHERE d.collection = $2 AND c.embedding IS NOT NULL%s
		ORDER BY c.embedding <=> $1::vector, c.document_id, c.chunk_index
		LIMIT $%d`,
		resultColumns, filter.SQL, len(args))

	return r.run(ctx, query, args)
}

// Metadata scans chunks under the filter alone. Every row scores 1.0
// and recency decides the order.
func (r *Repository) Metadata(ctx context.Context, collection string, filter *Compiled, limit int) ([]Result, error) {
	args := []any{collection}
	args = append(args, filter.Args...)
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s,
			1.0::float8 AS score
		FROM rag.chunks c
		JOIN rag.documents d ON d.id = c.document_id
		WHERE d.collection = $1%s
		ORDER BY c.created_at DESC, c.document_id, c.chunk_index
		LIMIT $%d`,
		resultColumns, filter.SQL, len(args))

	return r.run(ctx, query, args)
}

// Fulltext combines websearch_to_tsquery matching with an ILIKE
// fallback. Operator-heavy input the tsquery parser rejects is retried
// with ILIKE alone.
func (r *Repository) Fulltext(ctx context.Context, collection, text string, filter *Compiled, limit int) ([]Result, string, error) {
	args := []any{text, collection}
	args = append(args, filter.Args...)
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s,
			ts_rank(c.tsv, websearch_to_tsquery('simple', $1)) AS score
		FROM rag.chunks c
		JOIN rag.documents d ON d.id = c.document_id
		WHERE d.collection = $2
			AND (c.tsv @@ websearch_to_tsquery('simple', $1) OR c.text ILIKE '%%' || $1 || '%%')%s
		ORDER BY score DESC, c.document_id, c.chunk_index
		LIMIT $%d`,
		resultColumns, filter.SQL, len(args))

	results, err := r.run(ctx, query, args)
	if err == nil {
		return results, "tsquery+ilike", nil
	}
	if !pgutils.IsInvalidTsQuery(err) {
		return nil, "", err
	}

	r.log.Debug("tsquery rejected input, retrying with ILIKE", "query", text)

	fallback := fmt.Sprintf(`
		SELECT %s,
			0.5::float8 AS score
		FROM rag.chunks c
		JOIN rag.documents d ON d.id = c.document_id
		WHERE d.collection = $2 AND c.text ILIKE '%%' || $1 || '%%'%s
		ORDER BY c.created_at DESC, c.document_id, c.chunk_index
		LIMIT $%d`,
		resultColumns, filter.SQL, len(args))

	results, err = r.run(ctx, fallback, args)
	if err != nil {
		return nil, "", err
	}
	return results, "ilike", nil
}

func (r *Repository) run(ctx context.Context, query string, args []any) ([]Result, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	results := []Result{}
	for rows.Next() {
		var res Result
		if err := scanResult(rows, &res); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		res.ID = fmt.Sprintf("%s:%d", res.BaseID, res.ChunkIndex)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search rows: %w", err)
	}
	return results, nil
}

func scanResult(rows pgx.Rows, res *Result) error {
	return rows.Scan(
		&res.BaseID, &res.ChunkIndex, &res.Text, &res.DocType, &res.Source, &res.Path,
		&res.Lang, &res.RepoID, &res.RepoURL, &res.ItemURL,
		&res.Tier1Meta, &res.Tier2Meta, &res.Tier3Meta,
		&res.Collection, &res.Summary, &res.SummaryShort, &res.SummaryMedium, &res.SummaryLong,
		&res.PayloadChecksum,
		&res.Score,
	)
}
