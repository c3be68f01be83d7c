package documents

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Document is a logical source ingested once per (collection, identity key).
type Document struct {
	bun.BaseModel `bun:"table:rag.documents,alias:d"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	BaseID      string    `bun:"base_id,notnull" json:"baseId"`
	Collection  string    `bun:"collection,notnull,default:'default'" json:"collection"`
	Source      string    `bun:"source,notnull" json:"source"`
	IdentityKey string    `bun:"identity_key,notnull" json:"identityKey"`
	DocType     *string   `bun:"doc_type" json:"docType,omitempty"`
	MimeType    *string   `bun:"mime_type" json:"mimeType,omitempty"`

	Summary       *string `bun:"summary" json:"summary,omitempty"`
	SummaryShort  *string `bun:"summary_short" json:"summaryShort,omitempty"`
	SummaryMedium *string `bun:"summary_medium" json:"summaryMedium,omitempty"`
	SummaryLong   *string `bun:"summary_long" json:"summaryLong,omitempty"`

	// Raw payload lives inline up to the blob threshold, then in the
	// blob store under RawKey.
	RawData []byte  `bun:"raw_data" json:"-"`
	RawKey  *string `bun:"raw_key" json:"-"`

	IngestedAt time.Time `bun:"ingested_at,notnull,default:now()" json:"ingestedAt"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	LastSeen   time.Time `bun:"last_seen,notnull,default:now()" json:"lastSeen"`
}

// CollectionStats is one row of the collections listing.
type CollectionStats struct {
	Collection string `json:"collection"`
	Documents  int64  `json:"documents"`
	Chunks     int64  `json:"chunks"`
}

// Summaries carries document-level summaries promoted from enrichment
// results. Nil fields are left untouched.
type Summaries struct {
	Summary       *string
	SummaryShort  *string
	SummaryMedium *string
	SummaryLong   *string
}
