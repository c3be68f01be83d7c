// Package enrichment implements the Postgres-backed enrichment task
// queue: lease-based claims, retry with back-off, dead-letter handling
// and stale-lease recovery.
package enrichment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/ragedhq/raged/internal/config"
	"github.com/ragedhq/raged/pkg/apperror"
	"github.com/ragedhq/raged/pkg/logger"
	"github.com/ragedhq/raged/pkg/pgutils"
)

// enqueueBatchSize bounds the row count of a single INSERT.
const enqueueBatchSize = 100

// Queue provides the task queue operations. Claims use FOR UPDATE SKIP
// LOCKED so multiple workers scale without head-of-line blocking.
type Queue struct {
	db  *bun.DB
	cfg config.EnrichmentConfig
	log *slog.Logger
}

// NewQueue creates the enrichment queue
func NewQueue(db *bun.DB, cfg *config.Config, log *slog.Logger) *Queue {
	return &Queue{
		db:  db,
		cfg: cfg.Enrichment,
		log: log.With(logger.Scope("enrichment-queue")),
	}
}

// Enqueue inserts one pending task per payload, in bounded batches
// inside a single transaction. Returns the number of tasks created.
func (q *Queue) Enqueue(ctx context.Context, payloads []TaskPayload) (int, error) {
	if len(payloads) == 0 {
		return 0, nil
	}

	total := 0
	err := q.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for start := 0; start < len(payloads); start += enqueueBatchSize {
			end := min(start+enqueueBatchSize, len(payloads))

			tasks := make([]Task, 0, end-start)
			for _, p := range payloads[start:end] {
				tasks = append(tasks, Task{
					Queue:       QueueName,
					Status:      StatusPending,
					Payload:     p.asMap(),
					Attempt:     1,
					MaxAttempts: q.cfg.MaxAttempts,
					RunAfter:    time.Now(),
				})
			}

			res, err := tx.NewInsert().Model(&tasks).Exec(ctx)
			if err != nil {
				return fmt.Errorf("enqueue tasks: %w", err)
			}
			if n, err := res.RowsAffected(); err == nil {
				total += int(n)
			} else {
				total += len(tasks)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return total, nil
}

func (p TaskPayload) asMap() map[string]any {
	m := map[string]any{
		"chunkId":    p.ChunkID,
		"baseId":     p.BaseID,
		"chunkIndex": p.ChunkIndex,
		"collection": p.Collection,
		"docType":    p.DocType,
		"text":       p.Text,
		"source":     p.Source,
	}
	if p.Tier1Meta != nil {
		m["tier1Meta"] = p.Tier1Meta
	}
	return m
}

// Claim atomically leases the oldest eligible task for a worker.
// Returns nil when the queue is empty.
func (q *Queue) Claim(ctx context.Context, workerID string, lease time.Duration) (*Task, error) {
	if lease <= 0 {
		lease = q.cfg.Lease()
	}

	// Strategic SQL: the CTE with SKIP LOCKED cannot be expressed with
	// the query builder.
	query := `
		WITH cte AS (
			SELECT id FROM rag.enrichment_tasks
			WHERE queue = $1 AND status = 'pending' AND run_after <= now()
			ORDER BY priority DESC, run_after ASC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE rag.enrichment_tasks t
		SET status = 'processing',
			leased_until = now() + ($2 || ' seconds')::interval,
			worker_id = $3,
			updated_at = now()
		FROM cte WHERE t.id = cte.id
		RETURNING t.id, t.payload, t.attempt, t.max_attempts, t.leased_until, t.created_at`

	task := &Task{Queue: QueueName, Status: StatusProcessing, WorkerID: &workerID}
	var payload []byte

	row := q.db.QueryRowContext(ctx, query,
		QueueName, fmt.Sprintf("%d", int(lease.Seconds())), workerID)
	err := row.Scan(&task.ID, &payload, &task.Attempt, &task.MaxAttempts, &task.LeasedUntil, &task.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}

	if err := json.Unmarshal(payload, &task.Payload); err != nil {
		return nil, fmt.Errorf("decode task payload: %w", err)
	}

	return task, nil
}

// GetByID retrieves a task.
func (q *Queue) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	task := new(Task)
	err := q.db.NewSelect().Model(task).Where("t.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// Complete marks a task done and releases its lease.
func (q *Queue) Complete(ctx context.Context, id uuid.UUID) error {
	res, err := q.db.NewUpdate().
		Model((*Task)(nil)).
		Set("status = ?", StatusCompleted).
		Set("completed_at = now()").
		Set("leased_until = NULL").
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperror.ErrTaskNotFound
	}
	return nil
}

// Fail records a failed attempt. Below the attempt cap the task returns
// to pending after a back-off delay; at the cap it moves to the dead
// letter state. Returns whether the failure was final.
func (q *Queue) Fail(ctx context.Context, task *Task, errMsg string) (bool, error) {
	if task.Attempt < task.MaxAttempts {
		delay := q.retryDelay(task.Attempt)
		_, err := q.db.NewUpdate().
			Model((*Task)(nil)).
			Set("status = ?", StatusPending).
			Set("attempt = attempt + 1").
			Set("last_error = ?", truncateError(errMsg)).
			Set("run_after = now() + (? || ' seconds')::interval", fmt.Sprintf("%d", int(delay.Seconds()))).
			Set("leased_until = NULL").
			Set("worker_id = NULL").
			Set("updated_at = now()").
			Where("id = ?", task.ID).
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("fail task (retry): %w", err)
		}

		q.log.Debug("task scheduled for retry",
			slog.String("task_id", task.ID.String()),
			slog.Int("attempt", task.Attempt),
			slog.Duration("delay", delay))
		return false, nil
	}

	_, err := q.db.NewUpdate().
		Model((*Task)(nil)).
		Set("status = ?", StatusDead).
		Set("last_error = ?", truncateError(errMsg)).
		Set("completed_at = now()").
		Set("leased_until = NULL").
		Set("updated_at = now()").
		Where("id = ?", task.ID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("fail task (dead): %w", err)
	}

	q.log.Warn("task dead after max attempts",
		slog.String("task_id", task.ID.String()),
		slog.Int("attempts", task.Attempt),
		slog.String("error", truncateError(errMsg)))
	return true, nil
}

// retryDelay grows quadratically with the attempt count, floored at the
// base delay and capped at the configured maximum.
func (q *Queue) retryDelay(attempt int) time.Duration {
	base := float64(q.cfg.BaseRetryDelaySec)
	capped := math.Min(float64(q.cfg.MaxRetryDelaySec), math.Max(base, base*float64(attempt)*float64(attempt)))
	return time.Duration(capped) * time.Second
}

// RecoverStale returns expired leases to the pending state. Attempts
// are not incremented; lease expiry is not the worker's failure report.
func (q *Queue) RecoverStale(ctx context.Context) (int, error) {
	res, err := q.db.NewUpdate().
		Model((*Task)(nil)).
		Set("status = ?", StatusPending).
		Set("leased_until = NULL").
		Set("worker_id = NULL").
		Set("run_after = now()").
		Set("updated_at = now()").
		Where("status = ?", StatusProcessing).
		Where("leased_until < now()").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("recover stale tasks: %w", err)
	}

	count, _ := res.RowsAffected()
	if count > 0 {
		q.log.Warn("recovered stale tasks", slog.Int64("count", count))
	}
	return int(count), nil
}

// StatusCounts returns task counts by status, optionally restricted to
// a collection and a search term. Invalid search input falls back to
// ILIKE matching.
func (q *Queue) StatusCounts(ctx context.Context, collection, search string) (map[string]int64, error) {
	counts, err := q.statusCounts(ctx, collection, search, true)
	if err != nil && pgutils.IsInvalidTsQuery(err) {
		return q.statusCounts(ctx, collection, search, false)
	}
	return counts, err
}

func (q *Queue) statusCounts(ctx context.Context, collection, search string, useTsQuery bool) (map[string]int64, error) {
	var rows []struct {
		Status string `bun:"status"`
		Count  int64  `bun:"count"`
	}

	query := q.db.NewSelect().
		Model((*Task)(nil)).
		ColumnExpr("t.status").
		ColumnExpr("COUNT(*) AS count").
		GroupExpr("t.status")

	query = applyTaskFilters(query, collection, search, useTsQuery)

	if err := query.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("task status counts: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Clear deletes queued, in-flight and dead tasks matching the filters.
// Completed tasks are never deleted.
func (q *Queue) Clear(ctx context.Context, collection, search string) (int64, error) {
	deleted, err := q.clear(ctx, collection, search, true)
	if err != nil && pgutils.IsInvalidTsQuery(err) {
		return q.clear(ctx, collection, search, false)
	}
	return deleted, err
}

func (q *Queue) clear(ctx context.Context, collection, search string, useTsQuery bool) (int64, error) {
	query := q.db.NewDelete().
		Model((*Task)(nil)).
		Where("status IN (?)", bun.In([]string{StatusPending, StatusProcessing, StatusDead}))

	if collection != "" {
		query = query.Where("payload ->> 'collection' = ?", collection)
	}
	if search != "" {
		query = query.Where(taskSearchExpr(useTsQuery), taskSearchArgs(search, useTsQuery)...)
	}

	res, err := query.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear tasks: %w", err)
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}

func applyTaskFilters(query *bun.SelectQuery, collection, search string, useTsQuery bool) *bun.SelectQuery {
	if collection != "" {
		query = query.Where("t.payload ->> 'collection' = ?", collection)
	}
	if search != "" {
		query = query.Where(taskSearchExpr(useTsQuery), taskSearchArgs(search, useTsQuery)...)
	}
	return query
}

const taskSearchColumns = `coalesce(payload ->> 'text', '') || ' ' ||
	coalesce(payload ->> 'source', '') || ' ' ||
	coalesce(payload ->> 'baseId', '') || ' ' ||
	coalesce(payload ->> 'docType', '')`

func taskSearchExpr(useTsQuery bool) string {
	ilike := `(payload ->> 'text' ILIKE ? OR payload ->> 'source' ILIKE ? OR
		payload ->> 'baseId' ILIKE ? OR payload ->> 'docType' ILIKE ?)`
	if !useTsQuery {
		return ilike
	}
	return `(to_tsvector('simple', ` + taskSearchColumns + `) @@ websearch_to_tsquery('simple', ?) OR ` + ilike[1:]
}

func taskSearchArgs(search string, useTsQuery bool) []any {
	like := "%" + search + "%"
	if !useTsQuery {
		return []any{like, like, like, like}
	}
	return []any{search, like, like, like, like}
}

// truncateError bounds stored error messages to 500 characters.
func truncateError(msg string) string {
	if len(msg) > 500 {
		return msg[:500]
	}
	return msg
}
