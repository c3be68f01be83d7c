package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ragedhq/raged/domain/chunks"
	"github.com/ragedhq/raged/domain/documents"
	"github.com/ragedhq/raged/domain/graph"
	"github.com/ragedhq/raged/internal/config"
	"github.com/ragedhq/raged/pkg/apperror"
	"github.com/ragedhq/raged/pkg/logger"
)

// summaryKeys are promoted from chunk tier-3 metadata to the parent
// document and stripped from the stored chunk copy. The _error key is
// reserved for failure records and never accepted from workers.
var summaryKeys = []string{"summary", "summary_short", "summary_medium", "summary_long", "_error"}

// Service implements the worker-facing queue protocol and the operator
// surface of the enrichment pipeline.
type Service struct {
	cfg    *config.Config
	queue  *Queue
	docs   *documents.Repository
	chunks *chunks.Repository
	graph  *graph.Repository
	log    *slog.Logger
}

// NewService creates the enrichment service
func NewService(
	cfg *config.Config,
	queue *Queue,
	docs *documents.Repository,
	chunkRepo *chunks.Repository,
	graphRepo *graph.Repository,
	log *slog.Logger,
) *Service {
	return &Service{
		cfg:    cfg,
		queue:  queue,
		docs:   docs,
		chunks: chunkRepo,
		graph:  graphRepo,
		log:    log.With(logger.Scope("enrichment")),
	}
}

// ClaimResult is what a worker receives with a leased task.
type ClaimResult struct {
	Task *Task `json:"task"`

	// DocumentChunks is the fresh text of every chunk of the task's
	// document, in index order. Workers computing document-level
	// summaries need the full set.
	DocumentChunks []string `json:"documentChunks"`
}

// Claim leases the oldest eligible task for a worker. Returns nil when
// no task is eligible.
func (s *Service) Claim(ctx context.Context, workerID string, leaseSeconds int) (*ClaimResult, error) {
	if workerID == "" {
		return nil, apperror.NewBadRequest("workerId is required")
	}

	task, err := s.queue.Claim(ctx, workerID, time.Duration(leaseSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}

	tasksClaimed.Inc()

	result := &ClaimResult{Task: task}

	payload := payloadOf(task)
	doc, err := s.docs.GetByBaseID(ctx, payload.Collection, payload.BaseID)
	if err == nil {
		texts, terr := s.chunks.TextsForDocument(ctx, doc.ID)
		if terr != nil {
			return nil, terr
		}
		result.DocumentChunks = texts

		if serr := s.chunks.SetEnrichmentStatus(ctx, doc.ID, []int{payload.ChunkIndex}, chunks.EnrichmentProcessing); serr != nil {
			s.log.Warn("chunk status update failed", logger.Error(serr))
		}
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	return result, nil
}

// ResultRequest is the worker's submitted enrichment output.
type ResultRequest struct {
	ChunkID       string                    `json:"chunkId"`
	Tier2         map[string]any            `json:"tier2,omitempty"`
	Tier3         map[string]any            `json:"tier3,omitempty"`
	Entities      []graph.EntityInput       `json:"entities,omitempty"`
	Relationships []graph.RelationshipInput `json:"relationships,omitempty"`
}

// SubmitResult applies a worker's output: chunk metadata, document
// summary promotion, graph append-merge, then task completion. The
// task is completed last, so a mid-way crash leaves it leased and the
// work is redelivered after lease expiry.
func (s *Service) SubmitResult(ctx context.Context, taskID uuid.UUID, req ResultRequest) error {
	task, err := s.queue.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	payload := payloadOf(task)

	chunkID := req.ChunkID
	if chunkID == "" {
		chunkID = payload.ChunkID
	}
	baseID, index, err := ParseChunkID(chunkID)
	if err != nil {
		return err
	}

	doc, err := s.docs.GetByBaseID(ctx, collectionOr(payload.Collection), baseID)
	if err != nil {
		return err
	}

	tier3, summaries := splitSummaries(req.Tier3)
	if err := s.chunks.MarkEnriched(ctx, doc.ID, index, req.Tier2, tier3); err != nil {
		return err
	}

	if err := s.docs.UpdateSummaries(ctx, doc.ID, summaries); err != nil {
		return err
	}

	if err := s.graph.MergeEntities(ctx, doc.Collection, doc.ID, req.Entities); err != nil {
		return err
	}
	if err := s.graph.MergeRelationships(ctx, doc.Collection, req.Relationships); err != nil {
		return err
	}

	if err := s.queue.Complete(ctx, taskID); err != nil {
		return err
	}

	tasksCompleted.Inc()
	return nil
}

// splitSummaries removes the reserved summary keys from tier-3
// metadata and converts them into a document-level update. The plain
// summary falls back to the medium variant.
func splitSummaries(tier3 map[string]any) (map[string]any, documents.Summaries) {
	stripped := make(map[string]any, len(tier3))
	for k, v := range tier3 {
		stripped[k] = v
	}

	pick := func(key string) *string {
		v, ok := stripped[key].(string)
		delete(stripped, key)
		if !ok || v == "" {
			return nil
		}
		return &v
	}

	var summaries documents.Summaries
	summaries.Summary = pick("summary")
	summaries.SummaryShort = pick("summary_short")
	summaries.SummaryMedium = pick("summary_medium")
	summaries.SummaryLong = pick("summary_long")
	delete(stripped, "_error")

	if summaries.Summary == nil {
		summaries.Summary = summaries.SummaryMedium
	}

	return stripped, summaries
}

// FailTask records a worker-reported failure. Non-final failures
// return the task to pending; the final failure moves it to the dead
// letter state and writes the error record onto the chunk.
func (s *Service) FailTask(ctx context.Context, taskID uuid.UUID, message string) (bool, error) {
	task, err := s.queue.GetByID(ctx, taskID)
	if err != nil {
		return false, err
	}

	final, err := s.queue.Fail(ctx, task, message)
	if err != nil {
		return false, err
	}
	tasksFailed.WithLabelValues(fmt.Sprintf("%t", final)).Inc()
	if !final {
		return false, nil
	}

	payload := payloadOf(task)
	baseID := payload.BaseID
	index := payload.ChunkIndex
	if baseID == "" {
		if b, i, perr := ParseChunkID(payload.ChunkID); perr == nil {
			baseID, index = b, i
		}
	}

	doc, err := s.docs.GetByBaseID(ctx, collectionOr(payload.Collection), baseID)
	if err != nil {
		s.log.Warn("dead task has no document", slog.String("task_id", taskID.String()), logger.Error(err))
		return true, nil
	}

	errorBlob := map[string]any{
		"message":     message,
		"taskId":      task.ID.String(),
		"attempt":     task.Attempt,
		"maxAttempts": task.MaxAttempts,
		"final":       true,
		"failedAt":    time.Now().UTC().Format(time.RFC3339),
		"chunkIndex":  index,
	}
	if err := s.chunks.MarkFailed(ctx, doc.ID, index, errorBlob); err != nil {
		s.log.Warn("chunk failure record not written", logger.Error(err))
	}

	return true, nil
}

// RecoverStale releases expired leases back to pending.
func (s *Service) RecoverStale(ctx context.Context) (int, error) {
	count, err := s.queue.RecoverStale(ctx)
	if err != nil {
		return 0, err
	}
	tasksRecovered.Add(float64(count))
	return count, nil
}

// Stats aggregates task counts by status and chunk counts by
// enrichment status.
func (s *Service) Stats(ctx context.Context, collection, search string) (map[string]any, error) {
	taskCounts, err := s.queue.StatusCounts(ctx, collection, search)
	if err != nil {
		return nil, err
	}
	chunkCounts, err := s.chunks.StatusCounts(ctx, collection, search)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"tasks":  taskCounts,
		"chunks": chunkCounts,
	}, nil
}

// DocumentStatus describes the enrichment state of one document.
type DocumentStatus struct {
	BaseID     string           `json:"baseId"`
	DocumentID uuid.UUID        `json:"documentId"`
	Collection string           `json:"collection"`
	Counts     map[string]int   `json:"counts"`
	Chunks     []ChunkStatus    `json:"chunks"`
	Summaries  map[string]string `json:"summaries,omitempty"`
}

// ChunkStatus is the per-chunk slice of a document status.
type ChunkStatus struct {
	ChunkIndex int        `json:"chunkIndex"`
	Status     string     `json:"status"`
	EnrichedAt *time.Time `json:"enrichedAt,omitempty"`
	Error      any        `json:"error,omitempty"`
}

// Status reports the enrichment state of a document by base id.
func (s *Service) Status(ctx context.Context, collection, baseID string) (*DocumentStatus, error) {
	doc, err := s.docs.GetByBaseID(ctx, collectionOr(collection), baseID)
	if err != nil {
		return nil, err
	}

	chunkRows, err := s.chunks.ListForDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	status := &DocumentStatus{
		BaseID:     baseID,
		DocumentID: doc.ID,
		Collection: doc.Collection,
		Counts:     map[string]int{},
		Chunks:     make([]ChunkStatus, len(chunkRows)),
		Summaries:  map[string]string{},
	}
	for i, c := range chunkRows {
		status.Counts[c.EnrichmentStatus]++
		cs := ChunkStatus{
			ChunkIndex: c.ChunkIndex,
			Status:     c.EnrichmentStatus,
			EnrichedAt: c.EnrichedAt,
		}
		if c.Tier3Meta != nil {
			cs.Error = c.Tier3Meta["_error"]
		}
		status.Chunks[i] = cs
	}

	for key, v := range map[string]*string{
		"summary":        doc.Summary,
		"summary_short":  doc.SummaryShort,
		"summary_medium": doc.SummaryMedium,
		"summary_long":   doc.SummaryLong,
	} {
		if v != nil {
			status.Summaries[key] = *v
		}
	}

	return status, nil
}

// EnqueueForDocument creates one task per chunk of the document,
// walking the chunk set in bounded pages and flipping chunk statuses to
// pending.
func (s *Service) EnqueueForDocument(ctx context.Context, doc *documents.Document) (int, error) {
	const pageSize = 1000

	docType := ""
	if doc.DocType != nil {
		docType = *doc.DocType
	}

	total := 0
	cursor := -1
	for {
		page, err := s.chunks.ListPage(ctx, doc.ID, cursor, pageSize)
		if err != nil {
			return total, err
		}
		if len(page) == 0 {
			return total, nil
		}

		payloads := make([]TaskPayload, len(page))
		indexes := make([]int, len(page))
		for i, c := range page {
			payloads[i] = TaskPayload{
				ChunkID:    fmt.Sprintf("%s:%d", doc.BaseID, c.ChunkIndex),
				BaseID:     doc.BaseID,
				ChunkIndex: c.ChunkIndex,
				Collection: doc.Collection,
				DocType:    docType,
				Text:       c.Text,
				Source:     doc.Source,
				Tier1Meta:  c.Tier1Meta,
			}
			indexes[i] = c.ChunkIndex
		}

		n, err := s.queue.Enqueue(ctx, payloads)
		total += n
		if err != nil {
			return total, err
		}

		if err := s.chunks.SetEnrichmentStatus(ctx, doc.ID, indexes, chunks.EnrichmentPending); err != nil {
			return total, err
		}

		cursor = page[len(page)-1].ChunkIndex
		if len(page) < pageSize {
			return total, nil
		}
	}
}

// EnqueueByBaseID re-enqueues enrichment for one document.
func (s *Service) EnqueueByBaseID(ctx context.Context, collection, baseID string) (int, error) {
	doc, err := s.docs.GetByBaseID(ctx, collectionOr(collection), baseID)
	if err != nil {
		return 0, err
	}
	return s.EnqueueForDocument(ctx, doc)
}

// Clear deletes non-completed tasks matching the filters.
func (s *Service) Clear(ctx context.Context, collection, search string) (int64, error) {
	return s.queue.Clear(ctx, collection, search)
}

func payloadOf(task *Task) TaskPayload {
	p := TaskPayload{}
	if task.Payload == nil {
		return p
	}
	if v, ok := task.Payload["chunkId"].(string); ok {
		p.ChunkID = v
	}
	if v, ok := task.Payload["baseId"].(string); ok {
		p.BaseID = v
	}
	if v, ok := task.Payload["chunkIndex"].(float64); ok {
		p.ChunkIndex = int(v)
	}
	if v, ok := task.Payload["collection"].(string); ok {
		p.Collection = v
	}
	if v, ok := task.Payload["docType"].(string); ok {
		p.DocType = v
	}
	if v, ok := task.Payload["text"].(string); ok {
		p.Text = v
	}
	if v, ok := task.Payload["source"].(string); ok {
		p.Source = v
	}
	if v, ok := task.Payload["tier1Meta"].(map[string]any); ok {
		p.Tier1Meta = v
	}
	return p
}

func collectionOr(collection string) string {
	if collection == "" {
		return "default"
	}
	return collection
}
