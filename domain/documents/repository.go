package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/ragedhq/raged/pkg/apperror"
	"github.com/ragedhq/raged/pkg/logger"
)

// Repository handles document database operations
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new documents repository
func NewRepository(db *bun.DB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("documents-repo")),
	}
}

// UpsertParams describes one document upsert.
type UpsertParams struct {
	BaseID      string
	Collection  string
	Source      string
	IdentityKey string
	DocType     *string
	MimeType    *string
	RawData     []byte
	RawKey      *string

	// Overwrite refreshes content fields on conflict. Without it a
	// re-ingest only bumps last_seen and updated_at.
	Overwrite bool
}

// Upsert inserts or refreshes the document identified by
// (collection, identity_key) and returns the authoritative row.
func (r *Repository) Upsert(ctx context.Context, params UpsertParams) (*Document, error) {
	doc := &Document{
		BaseID:      params.BaseID,
		Collection:  params.Collection,
		Source:      params.Source,
		IdentityKey: params.IdentityKey,
		DocType:     params.DocType,
		MimeType:    params.MimeType,
		RawData:     params.RawData,
		RawKey:      params.RawKey,
	}

	insert := r.db.NewInsert().
		Model(doc).
		On("CONFLICT (collection, identity_key) DO UPDATE").
		Set("updated_at = now()").
		Set("last_seen = now()")

	if params.Overwrite {
		insert = insert.
			Set("base_id = EXCLUDED.base_id").
			Set("source = EXCLUDED.source").
			Set("doc_type = EXCLUDED.doc_type").
			Set("mime_type = EXCLUDED.mime_type").
			Set("raw_data = EXCLUDED.raw_data").
			Set("raw_key = EXCLUDED.raw_key")
	}

	if _, err := insert.Returning("*").Exec(ctx); err != nil {
		return nil, fmt.Errorf("upsert document: %w", err)
	}

	return doc, nil
}

// GetByID retrieves a document by its primary key.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	doc := new(Document)
	err := r.db.NewSelect().Model(doc).Where("d.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// GetByBaseID retrieves the most recently seen document with the given
// base id within a collection.
func (r *Repository) GetByBaseID(ctx context.Context, collection, baseID string) (*Document, error) {
	doc := new(Document)
	err := r.db.NewSelect().
		Model(doc).
		Where("d.collection = ?", collection).
		Where("d.base_id = ?", baseID).
		Order("d.last_seen DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document by base id: %w", err)
	}
	return doc, nil
}

// ListCollections returns per-collection document and chunk counts.
func (r *Repository) ListCollections(ctx context.Context) ([]CollectionStats, error) {
	stats := []CollectionStats{}
	err := r.db.NewSelect().
		TableExpr("rag.documents AS d").
		ColumnExpr("d.collection").
		ColumnExpr("COUNT(DISTINCT d.id) AS documents").
		ColumnExpr("COUNT(c.id) AS chunks").
		Join("LEFT JOIN rag.chunks AS c ON c.document_id = d.id").
		GroupExpr("d.collection").
		OrderExpr("d.collection").
		Scan(ctx, &stats)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return stats, nil
}

// UpdateSummaries applies promoted document-level summaries. Only
// non-nil fields are written.
func (r *Repository) UpdateSummaries(ctx context.Context, id uuid.UUID, s Summaries) error {
	update := r.db.NewUpdate().
		Model((*Document)(nil)).
		Where("id = ?", id).
		Set("updated_at = now()")

	changed := false
	if s.Summary != nil {
		update = update.Set("summary = ?", *s.Summary)
		changed = true
	}
	if s.SummaryShort != nil {
		update = update.Set("summary_short = ?", *s.SummaryShort)
		changed = true
	}
	if s.SummaryMedium != nil {
		update = update.Set("summary_medium = ?", *s.SummaryMedium)
		changed = true
	}
	if s.SummaryLong != nil {
		update = update.Set("summary_long = ?", *s.SummaryLong)
		changed = true
	}
	if !changed {
		return nil
	}

	if _, err := update.Exec(ctx); err != nil {
		return fmt.Errorf("update document summaries: %w", err)
	}
	return nil
}

// GetByIdentity looks up a document by its idempotence key.
func (r *Repository) GetByIdentity(ctx context.Context, collection, identityKey string) (*Document, error) {
	doc := new(Document)
	err := r.db.NewSelect().
		Model(doc).
		Where("d.collection = ?", collection).
		Where("d.identity_key = ?", identityKey).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document by identity: %w", err)
	}
	return doc, nil
}

// Touch bumps last_seen and updated_at without changing content.
func (r *Repository) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.NewUpdate().
		Model((*Document)(nil)).
		Set("last_seen = now()").
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("touch document: %w", err)
	}
	return nil
}
