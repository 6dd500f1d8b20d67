package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/pos-sync/internal/model"
)

// OutboxRepository defines persistence methods for the outbox table.
type OutboxRepository interface {
	// Insert writes a single outbox record. If tx is nil, it will open/commit
	// an internal transaction; otherwise it uses the given tx so the record
	// commits (or rolls back) together with the domain write.
	Insert(ctx context.Context, tx *sqlx.Tx, rec model.OutboxRecord) error

	// ListPending returns every record still awaiting delivery (pending or
	// failed), oldest first. The result is materialized: records enqueued
	// after the call are picked up on the next cycle.
	ListPending(ctx context.Context) ([]model.OutboxRecord, error)

	// CountPending is a cheap count of records awaiting delivery.
	CountPending(ctx context.Context) (int, error)

	// MarkSynced transitions a record to synced. Idempotent; synced is
	// terminal and never overwritten.
	MarkSynced(ctx context.Context, id string) error

	// MarkFailed records a delivery failure. Idempotent; the record stays
	// eligible for the next drain.
	MarkFailed(ctx context.Context, id, reason string) error

	// Get fetches one record by id (nil when absent).
	Get(ctx context.Context, id string) (*model.OutboxRecord, error)
}

// OutboxRepositoryImpl is a sqlx-backed implementation.
type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs an OutboxRepositoryImpl.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

// withTx runs fn in the provided tx, or starts a new transaction when tx is nil.
func (r *OutboxRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}

	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}

	return t.Commit()
}

func (r *OutboxRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, rec model.OutboxRecord) error {
	const q = `
		INSERT INTO outbox (id, entity_type, entity_id, operation, payload, status, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, '', ?, ?)
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			rec.ID, rec.EntityType, rec.EntityID, rec.Operation.String(),
			rec.Payload, rec.Status.String(), rec.CreatedAt, rec.UpdatedAt,
		)

		return err
	})
}

// ListPending includes failed records: they stay eligible for every future
// drain until the remote accepts them.
func (r *OutboxRepositoryImpl) ListPending(ctx context.Context) ([]model.OutboxRecord, error) {
	const q = `
		SELECT id, entity_type, entity_id, operation, payload, status, last_error, created_at, updated_at
		FROM outbox
		WHERE status <> 'synced'
		ORDER BY created_at ASC, id ASC
	`
	var recs []model.OutboxRecord
	if err := r.db.SelectContext(ctx, &recs, q); err != nil {
		return nil, err
	}

	return recs, nil
}

func (r *OutboxRepositoryImpl) CountPending(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM outbox WHERE status <> 'synced'`
	var n int
	if err := r.db.GetContext(ctx, &n, q); err != nil {
		return 0, err
	}

	return n, nil
}

func (r *OutboxRepositoryImpl) MarkSynced(ctx context.Context, id string) error {
	const q = `
		UPDATE outbox SET status = 'synced', last_error = '', updated_at = ?
		WHERE id = ? AND status <> 'synced'
	`
	_, err := r.db.ExecContext(ctx, q, time.Now().UTC(), id)

	return err
}

func (r *OutboxRepositoryImpl) MarkFailed(ctx context.Context, id, reason string) error {
	const q = `
		UPDATE outbox SET status = 'failed', last_error = ?, updated_at = ?
		WHERE id = ? AND status <> 'synced'
	`
	_, err := r.db.ExecContext(ctx, q, reason, time.Now().UTC(), id)

	return err
}

func (r *OutboxRepositoryImpl) Get(ctx context.Context, id string) (*model.OutboxRecord, error) {
	const q = `
		SELECT id, entity_type, entity_id, operation, payload, status, last_error, created_at, updated_at
		FROM outbox
		WHERE id = ?
	`
	var rec model.OutboxRecord
	if err := r.db.GetContext(ctx, &rec, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &rec, nil
}
