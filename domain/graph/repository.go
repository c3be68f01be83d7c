package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/ragedhq/raged/internal/database"
	"github.com/ragedhq/raged/pkg/apperror"
	"github.com/ragedhq/raged/pkg/logger"
)

// Repository stores the entity graph by append-merge: repeated
// submissions of the same entity or edge accumulate mention counts
// instead of duplicating rows.
type Repository struct {
	db  *bun.DB
	log *slog.Logger
}

// NewRepository creates a new graph repository
func NewRepository(db *bun.DB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("graph-repo")),
	}
}

// MergeEntities upserts worker-submitted entities and records their
// mention in the given document. The batch runs in one transaction so
// an entity upsert never lands without its mention row.
func (r *Repository) MergeEntities(ctx context.Context, collection string, documentID uuid.UUID, inputs []EntityInput) error {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return fmt.Errorf("begin entity merge: %w", err)
	}
	defer tx.Rollback()

	for _, input := range inputs {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			continue
		}

		entity := &Entity{
			Collection:   collection,
			Name:         name,
			Type:         typeOr(input.Type, "unknown"),
			Description:  optional(input.Description),
			MentionCount: 1,
		}

		_, err := tx.NewInsert().
			Model(entity).
			On("CONFLICT (collection, name) DO UPDATE").
			Set("mention_count = e.mention_count + 1").
			Set("type = CASE WHEN EXCLUDED.type <> 'unknown' THEN EXCLUDED.type ELSE e.type END").
			Set("description = COALESCE(EXCLUDED.description, e.description)").
			Set("updated_at = now()").
			Returning("id").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("merge entity %q: %w", name, err)
		}

		mention := &EntityMention{
			EntityID:   entity.ID,
			DocumentID: documentID,
			Count:      1,
		}
		_, err = tx.NewInsert().
			Model(mention).
			On("CONFLICT (entity_id, document_id) DO UPDATE").
			Set("count = m.count + 1").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("merge entity mention: %w", err)
		}
	}
	return tx.Commit()
}

// MergeRelationships upserts worker-submitted edges. The batch is
// all-or-nothing.
func (r *Repository) MergeRelationships(ctx context.Context, collection string, inputs []RelationshipInput) error {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return fmt.Errorf("begin relationship merge: %w", err)
	}
	defer tx.Rollback()

	for _, input := range inputs {
		source := strings.TrimSpace(input.Source)
		target := strings.TrimSpace(input.Target)
		if source == "" || target == "" {
			continue
		}

		rel := &Relationship{
			Collection:   collection,
			SourceEntity: source,
			TargetEntity: target,
			Type:         typeOr(input.Type, "related_to"),
			Description:  optional(input.Description),
			MentionCount: 1,
		}

		_, err := tx.NewInsert().
			Model(rel).
			On("CONFLICT (collection, source_entity, target_entity, type) DO UPDATE").
			Set("mention_count = r.mention_count + 1").
			Set("description = COALESCE(EXCLUDED.description, r.description)").
			Set("updated_at = now()").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("merge relationship %s -> %s: %w", source, target, err)
		}
	}
	return tx.Commit()
}

// EntityByName resolves one entity.
func (r *Repository) EntityByName(ctx context.Context, collection, name string) (*Entity, error) {
	entity := new(Entity)
	err := r.db.NewSelect().
		Model(entity).
		Where("e.collection = ?", collection).
		Where("e.name = ?", name).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return entity, nil
}

// RelationshipsTouching returns all edges whose source or target is in
// the given name set.
func (r *Repository) RelationshipsTouching(ctx context.Context, collection string, names []string) ([]Relationship, error) {
	if len(names) == 0 {
		return nil, nil
	}
	rels := []Relationship{}
	err := r.db.NewSelect().
		Model(&rels).
		Where("r.collection = ?", collection).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("r.source_entity IN (?)", bun.In(names)).
				WhereOr("r.target_entity IN (?)", bun.In(names))
		}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("relationships touching: %w", err)
	}
	return rels, nil
}

// EntitiesByName resolves a batch of entities by name.
func (r *Repository) EntitiesByName(ctx context.Context, collection string, names []string) ([]Entity, error) {
	if len(names) == 0 {
		return nil, nil
	}
	entities := []Entity{}
	err := r.db.NewSelect().
		Model(&entities).
		Where("e.collection = ?", collection).
		Where("e.name IN (?)", bun.In(names)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("entities by name: %w", err)
	}
	return entities, nil
}

// MentionDocument is one document mentioning an entity.
type MentionDocument struct {
	EntityID uuid.UUID `bun:"entity_id" json:"-"`
	BaseID   string    `bun:"base_id" json:"baseId"`
	Source   string    `bun:"source" json:"source"`
	Count    int       `bun:"count" json:"count"`
}

// MentionsFor returns the documents mentioning each of the given
// entities.
func (r *Repository) MentionsFor(ctx context.Context, entityIDs []uuid.UUID) (map[uuid.UUID][]MentionDocument, error) {
	if len(entityIDs) == 0 {
		return map[uuid.UUID][]MentionDocument{}, nil
	}

	rows := []MentionDocument{}
	err := r.db.NewSelect().
		TableExpr("rag.entity_mentions AS m").
		ColumnExpr("m.entity_id").
		ColumnExpr("d.base_id").
		ColumnExpr("d.source").
		ColumnExpr("m.count").
		Join("JOIN rag.documents AS d ON d.id = m.document_id").
		Where("m.entity_id IN (?)", bun.In(entityIDs)).
		OrderExpr("m.count DESC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("entity mentions: %w", err)
	}

	byEntity := make(map[uuid.UUID][]MentionDocument, len(entityIDs))
	for _, row := range rows {
		byEntity[row.EntityID] = append(byEntity[row.EntityID], row)
	}
	return byEntity, nil
}

func typeOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
