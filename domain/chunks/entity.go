package chunks

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Enrichment status values for a chunk.
const (
	EnrichmentNone       = "none"
	EnrichmentPending    = "pending"
	EnrichmentProcessing = "processing"
	EnrichmentEnriched   = "enriched"
	EnrichmentFailed     = "failed"
)

// Chunk is one embedded fragment of a document.
type Chunk struct {
	bun.BaseModel `bun:"table:rag.chunks,alias:c"`

	ID         uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	DocumentID uuid.UUID `bun:"document_id,notnull,type:uuid" json:"documentId"`
	ChunkIndex int       `bun:"chunk_index,notnull" json:"chunkIndex"`
	Text       string    `bun:"text,notnull" json:"text"`
	Embedding  []float32 `bun:"-" json:"-"`

	DocType string `bun:"doc_type" json:"docType,omitempty"`
	Source  string `bun:"source" json:"source,omitempty"`
	Path    string `bun:"path" json:"path,omitempty"`
	Lang    string `bun:"lang" json:"lang,omitempty"`
	RepoID  string `bun:"repo_id" json:"repoId,omitempty"`
	RepoURL string `bun:"repo_url" json:"repoUrl,omitempty"`
	ItemURL string `bun:"item_url" json:"itemUrl,omitempty"`

	Tier1Meta map[string]any `bun:"tier1_meta,type:jsonb" json:"tier1Meta,omitempty"`
	Tier2Meta map[string]any `bun:"tier2_meta,type:jsonb" json:"tier2Meta,omitempty"`
	Tier3Meta map[string]any `bun:"tier3_meta,type:jsonb" json:"tier3Meta,omitempty"`

	EnrichmentStatus string     `bun:"enrichment_status,notnull,default:'none'" json:"enrichmentStatus"`
	EnrichedAt       *time.Time `bun:"enriched_at" json:"enrichedAt,omitempty"`
	CreatedAt        time.Time  `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

