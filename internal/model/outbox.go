package model

import "time"

type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

func (o Operation) String() string { return string(o) }

func (o Operation) Valid() bool {
	return o == OpCreate || o == OpUpdate || o == OpDelete
}

type OutboxStatus string

const (
	StatusPending OutboxStatus = "pending"
	StatusSynced  OutboxStatus = "synced"
	StatusFailed  OutboxStatus = "failed"
)

func (s OutboxStatus) String() string { return string(s) }

func (s OutboxStatus) Valid() bool {
	return s == StatusPending || s == StatusSynced || s == StatusFailed
}

// OutboxRecord is one pending or historical mutation persisted in the outbox table.
// entity_type/entity_id/operation are immutable after insert; only status and
// last_error change afterwards.
type OutboxRecord struct {
	ID         string       `db:"id"` // ULID, assigned at enqueue time
	EntityType string       `db:"entity_type"`
	EntityID   string       `db:"entity_id"`
	Operation  Operation    `db:"operation"`
	Payload    []byte       `db:"payload"` // opaque JSON; empty for deletes
	Status     OutboxStatus `db:"status"`
	LastError  string       `db:"last_error"`
	CreatedAt  time.Time    `db:"created_at"` // FIFO drain key
	UpdatedAt  time.Time    `db:"updated_at"`
}
