package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/pos-sync/internal/model"
	"github.com/jmehdipour/pos-sync/internal/repository"
	"github.com/jmehdipour/pos-sync/internal/util"
)

var (
	ErrInvalidOperation = errors.New("invalid operation")
	ErrMissingEntity    = errors.New("entity type and id are required")
	ErrMissingPayload   = errors.New("payload is required for create/update")
)

// Service is the queue-write API exposed to domain logic. An enqueue failure
// propagates to the caller so the originating domain mutation can roll back
// with it; a silently-lost enqueue is silent data loss.
type Service struct {
	db     *sqlx.DB
	outbox repository.OutboxRepository
}

// New constructs the queue service.
func New(db *sqlx.DB, outboxRepo repository.OutboxRepository) *Service {
	return &Service{db: db, outbox: outboxRepo}
}

// Enqueue durably appends one pending mutation in its own transaction and
// returns the generated record id.
func (s *Service) Enqueue(ctx context.Context, entityType, entityID string, op model.Operation, payload []byte) (string, error) {
	return s.enqueue(ctx, nil, entityType, entityID, op, payload)
}

// EnqueueTx appends within the caller's transaction so the outbox write and
// the domain write commit (or roll back) as one unit of work.
func (s *Service) EnqueueTx(ctx context.Context, tx *sqlx.Tx, entityType, entityID string, op model.Operation, payload []byte) (string, error) {
	return s.enqueue(ctx, tx, entityType, entityID, op, payload)
}

func (s *Service) enqueue(ctx context.Context, tx *sqlx.Tx, entityType, entityID string, op model.Operation, payload []byte) (string, error) {
	entityType = strings.TrimSpace(entityType)
	entityID = strings.TrimSpace(entityID)
	if entityType == "" || entityID == "" {
		return "", ErrMissingEntity
	}
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOperation, op)
	}
	// deletes only need the entity id; everything else carries state
	if len(payload) == 0 && op != model.OpDelete {
		return "", ErrMissingPayload
	}

	now := time.Now().UTC()
	rec := model.OutboxRecord{
		ID:         util.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Operation:  op,
		Payload:    payload,
		Status:     model.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.outbox.Insert(ctx, tx, rec); err != nil {
		return "", fmt.Errorf("insert outbox: %w", err)
	}

	return rec.ID, nil
}

// WithinTx runs fn in one transaction. Domain collaborators use it to commit
// their own write and the matching EnqueueTx call as a single unit of work.
func (s *Service) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// CountPending reports how many records still await delivery.
func (s *Service) CountPending(ctx context.Context) (int, error) {
	return s.outbox.CountPending(ctx)
}
