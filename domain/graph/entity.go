package graph

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Entity is a named concept extracted by enrichment workers.
type Entity struct {
	bun.BaseModel `bun:"table:rag.entities,alias:e"`

	ID           uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	Collection   string    `bun:"collection,notnull,default:'default'" json:"collection"`
	Name         string    `bun:"name,notnull" json:"name"`
	Type         string    `bun:"type,notnull,default:'unknown'" json:"type"`
	Description  *string   `bun:"description" json:"description,omitempty"`
	MentionCount int       `bun:"mention_count,notnull,default:0" json:"mentionCount"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// EntityMention links an entity to a document that mentions it.
type EntityMention struct {
	bun.BaseModel `bun:"table:rag.entity_mentions,alias:m"`

	ID         uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	EntityID   uuid.UUID `bun:"entity_id,notnull,type:uuid" json:"entityId"`
	DocumentID uuid.UUID `bun:"document_id,notnull,type:uuid" json:"documentId"`
	BaseID     string    `bun:"base_id,notnull,default:''" json:"baseId"`
	Count      int       `bun:"count,notnull,default:1" json:"count"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// Relationship is a directed edge between two entities, stored by name.
type Relationship struct {
	bun.BaseModel `bun:"table:rag.relationships,alias:r"`

	ID           uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	Collection   string    `bun:"collection,notnull,default:'default'" json:"collection"`
	SourceEntity string    `bun:"source_entity,notnull" json:"source"`
	TargetEntity string    `bun:"target_entity,notnull" json:"target"`
	Type         string    `bun:"type,notnull,default:'related_to'" json:"type"`
	Description  *string   `bun:"description" json:"description,omitempty"`
	MentionCount int       `bun:"mention_count,notnull,default:0" json:"mentionCount"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// EntityInput is an entity as submitted by an enrichment worker.
type EntityInput struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// RelationshipInput is a relationship as submitted by a worker.
type RelationshipInput struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}
