package chunks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"

	"github.com/ragedhq/raged/pkg/apperror"
	"github.com/ragedhq/raged/pkg/logger"
	"github.com/ragedhq/raged/pkg/pgutils"
)

// Repository handles chunk database operations. Reads go through bun;
// vector writes go through the pgx pool so embeddings can be cast to
// the vector type.
type Repository struct {
	db   *bun.DB
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository creates a new chunks repository
func NewRepository(db *bun.DB, pool *pgxpool.Pool, log *slog.Logger) *Repository {
	return &Repository{
		db:   db,
		pool: pool,
		log:  log.With(logger.Scope("chunks-repo")),
	}
}

// ReplaceForDocument swaps the full chunk set of a document in one
// transaction: existing rows are deleted, the new set inserted in index
// order.
func (r *Repository) ReplaceForDocument(ctx context.Context, documentID uuid.UUID, items []Chunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin chunk replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM rag.chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range items {
		tier1, err := json.Marshal(orEmpty(c.Tier1Meta))
		if err != nil {
			return fmt.Errorf("marshal tier1 meta: %w", err)
		}

		var embedding *string
		if c.Embedding != nil {
			v := pgutils.FormatVector(c.Embedding)
			embedding = &v
		}

		batch.Queue(`
			INSERT INTO rag.chunks
				(document_id, chunk_index, text, embedding, doc_type, source, path,
				 lang, repo_id, repo_url, item_url, tier1_meta, enrichment_status)
			VALUES ($1, $2, $3, $4::vector, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13)`,
			documentID, c.ChunkIndex, c.Text, embedding, c.DocType, c.Source, c.Path,
			c.Lang, c.RepoID, c.RepoURL, c.ItemURL, string(tier1), statusOrNone(c.EnrichmentStatus),
		)
	}

	if batch.Len() > 0 {
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("insert chunk: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("close chunk batch: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListPage returns chunks of a document after the given index, ordered
// by chunk_index, limited to pageSize rows. Used as a cursor for
// bounded enqueue pagination.
func (r *Repository) ListPage(ctx context.Context, documentID uuid.UUID, afterIndex, pageSize int) ([]Chunk, error) {
	items := []Chunk{}
	err := r.db.NewSelect().
		Model(&items).
		Where("c.document_id = ?", documentID).
		Where("c.chunk_index > ?", afterIndex).
		Order("c.chunk_index ASC").
		Limit(pageSize).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chunk page: %w", err)
	}
	return items, nil
}

// ListForDocument returns all chunks of a document in index order.
func (r *Repository) ListForDocument(ctx context.Context, documentID uuid.UUID) ([]Chunk, error) {
	items := []Chunk{}
	err := r.db.NewSelect().
		Model(&items).
		Where("c.document_id = ?", documentID).
		Order("c.chunk_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return items, nil
}

// TextsForDocument returns the fresh text of all chunks of a document
// in index order.
func (r *Repository) TextsForDocument(ctx context.Context, documentID uuid.UUID) ([]string, error) {
	var texts []string
	err := r.db.NewSelect().
		Model((*Chunk)(nil)).
		Column("c.text").
		Where("c.document_id = ?", documentID).
		Order("c.chunk_index ASC").
		Scan(ctx, &texts)
	if err != nil {
		return nil, fmt.Errorf("chunk texts: %w", err)
	}
	return texts, nil
}

// MarkEnriched stores enrichment output on a chunk and flips its status.
func (r *Repository) MarkEnriched(ctx context.Context, documentID uuid.UUID, index int, tier2, tier3 map[string]any) error {
	tier2JSON, err := json.Marshal(orEmpty(tier2))
	if err != nil {
		return fmt.Errorf("marshal tier2 meta: %w", err)
	}
	tier3JSON, err := json.Marshal(orEmpty(tier3))
	if err != nil {
		return fmt.Errorf("marshal tier3 meta: %w", err)
	}

	res, err := r.db.NewUpdate().
		Model((*Chunk)(nil)).
		Set("tier2_meta = ?::jsonb", string(tier2JSON)).
		Set("tier3_meta = ?::jsonb", string(tier3JSON)).
		Set("enrichment_status = ?", EnrichmentEnriched).
		Set("enriched_at = now()").
		Where("document_id = ?", documentID).
		Where("chunk_index = ?", index).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark chunk enriched: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

// MarkFailed records a terminal enrichment failure on a chunk. The
// error blob lands under the reserved _error key of tier3_meta.
func (r *Repository) MarkFailed(ctx context.Context, documentID uuid.UUID, index int, errorBlob map[string]any) error {
	blob, err := json.Marshal(errorBlob)
	if err != nil {
		return fmt.Errorf("marshal error blob: %w", err)
	}

	_, err = r.db.NewUpdate().
		Model((*Chunk)(nil)).
		Set("tier3_meta = COALESCE(tier3_meta, '{}'::jsonb) || jsonb_build_object('_error', ?::jsonb)", string(blob)).
		Set("enrichment_status = ?", EnrichmentFailed).
		Where("document_id = ?", documentID).
		Where("chunk_index = ?", index).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark chunk failed: %w", err)
	}
	return nil
}

// SetEnrichmentStatus updates the status of specific chunks of a document.
func (r *Repository) SetEnrichmentStatus(ctx context.Context, documentID uuid.UUID, indexes []int, status string) error {
	if len(indexes) == 0 {
		return nil
	}
	_, err := r.db.NewUpdate().
		Model((*Chunk)(nil)).
		Set("enrichment_status = ?", status).
		Where("document_id = ?", documentID).
		Where("chunk_index IN (?)", bun.In(indexes)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set enrichment status: %w", err)
	}
	return nil
}

// StatusCounts returns chunk counts grouped by enrichment_status,
// optionally restricted to a collection and a search term. Invalid
// search input falls back to ILIKE matching.
func (r *Repository) StatusCounts(ctx context.Context, collection, search string) (map[string]int64, error) {
	counts, err := r.statusCounts(ctx, collection, search, true)
	if err != nil && pgutils.IsInvalidTsQuery(err) {
		return r.statusCounts(ctx, collection, search, false)
	}
	return counts, err
}

func (r *Repository) statusCounts(ctx context.Context, collection, search string, useTsQuery bool) (map[string]int64, error) {
	var rows []struct {
		Status string `bun:"enrichment_status"`
		Count  int64  `bun:"count"`
	}

	q := r.db.NewSelect().
		TableExpr("rag.chunks AS c").
		ColumnExpr("c.enrichment_status").
		ColumnExpr("COUNT(*) AS count").
		GroupExpr("c.enrichment_status")

	if collection != "" || search != "" {
		q = q.Join("JOIN rag.documents AS d ON d.id = c.document_id")
	}
	if collection != "" {
		q = q.Where("d.collection = ?", collection)
	}
	if search != "" {
		q = q.Where(chunkSearchExpr(useTsQuery), chunkSearchArgs(search, useTsQuery)...)
	}

	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("chunk status counts: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

const chunkSearchColumns = `coalesce(c.text, '') || ' ' ||
	coalesce(d.source, '') || ' ' ||
	coalesce(c.doc_type, '') || ' ' ||
	coalesce(d.summary, '') || ' ' ||
	coalesce(d.summary_short, '') || ' ' ||
	coalesce(d.summary_medium, '') || ' ' ||
	coalesce(d.summary_long, '')`

func chunkSearchExpr(useTsQuery bool) string {
	ilike := `(c.text ILIKE ? OR d.source ILIKE ? OR c.doc_type ILIKE ? OR
		d.summary ILIKE ? OR d.summary_short ILIKE ? OR
		d.summary_medium ILIKE ? OR d.summary_long ILIKE ?)`
	if !useTsQuery {
		return ilike
	}
	return `(to_tsvector('simple', ` + chunkSearchColumns + `) @@ websearch_to_tsquery('simple', ?) OR ` + ilike[1:]
}

func chunkSearchArgs(search string, useTsQuery bool) []any {
	like := "%" + search + "%"
	args := []any{like, like, like, like, like, like, like}
	if useTsQuery {
		return append([]any{search}, args...)
	}
	return args
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func statusOrNone(status string) string {
	if status == "" {
		return EnrichmentNone
	}
	return status
}
