package enrichment

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// QueueName is the single queue the enrichment pipeline uses.
const QueueName = "enrichment"

// Task status values.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusDead       = "dead"
)

// Task is one unit of enrichment work.
type Task struct {
	bun.BaseModel `bun:"table:rag.enrichment_tasks,alias:t"`

	ID          uuid.UUID      `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	Queue       string         `bun:"queue,notnull,default:'enrichment'" json:"queue"`
	Status      string         `bun:"status,notnull,default:'pending'" json:"status"`
	Payload     map[string]any `bun:"payload,type:jsonb" json:"payload"`
	Attempt     int            `bun:"attempt,notnull,default:1" json:"attempt"`
	MaxAttempts int            `bun:"max_attempts,notnull,default:3" json:"maxAttempts"`
	Priority    int            `bun:"priority,notnull,default:0" json:"-"`
	RunAfter    time.Time      `bun:"run_after,notnull,default:now()" json:"runAfter"`
	LeasedUntil *time.Time     `bun:"leased_until" json:"leasedUntil,omitempty"`
	WorkerID    *string        `bun:"worker_id" json:"workerId,omitempty"`
	LastError   *string        `bun:"last_error" json:"lastError,omitempty"`
	CreatedAt   time.Time      `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt   time.Time      `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
	CompletedAt *time.Time     `bun:"completed_at" json:"completedAt,omitempty"`
}

// TaskPayload is the worker-facing payload of a task. It carries
// everything a worker needs without further lookups.
type TaskPayload struct {
	ChunkID    string         `json:"chunkId"`
	BaseID     string         `json:"baseId"`
	ChunkIndex int            `json:"chunkIndex"`
	Collection string         `json:"collection"`
	DocType    string         `json:"docType"`
	Text       string         `json:"text"`
	Source     string         `json:"source"`
	Tier1Meta  map[string]any `json:"tier1Meta,omitempty"`
}
