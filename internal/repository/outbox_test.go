package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/jmehdipour/pos-sync/internal/model"
)

const testSchema = `
CREATE TABLE outbox (
    id          VARCHAR(26)  NOT NULL PRIMARY KEY,
    entity_type VARCHAR(64)  NOT NULL,
    entity_id   VARCHAR(64)  NOT NULL,
    operation   VARCHAR(16)  NOT NULL,
    payload     BLOB,
    status      VARCHAR(16)  NOT NULL DEFAULT 'pending',
    last_error  TEXT         NOT NULL DEFAULT '',
    created_at  DATETIME     NOT NULL,
    updated_at  DATETIME     NOT NULL
);
CREATE INDEX idx_outbox_status_created ON outbox (status, created_at);
`

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dbx, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// a second connection would see its own empty in-memory database
	dbx.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = dbx.Close() })

	_, err = dbx.Exec(testSchema)
	require.NoError(t, err)

	return dbx
}

func newRecord(id, entityType, entityID string, op model.Operation, createdAt time.Time) model.OutboxRecord {
	return model.OutboxRecord{
		ID:         id,
		EntityType: entityType,
		EntityID:   entityID,
		Operation:  op,
		Payload:    []byte(`{"name":"Tea","price":10}`),
		Status:     model.StatusPending,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestOutboxInsertAndGet(t *testing.T) {
	repo := NewOutboxRepository(newTestDB(t))
	ctx := context.Background()

	rec := newRecord("01A", model.EntityProduct, "p-1", model.OpCreate, time.Now().UTC())
	require.NoError(t, repo.Insert(ctx, nil, rec))

	got, err := repo.Get(ctx, "01A")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.EntityProduct, got.EntityType)
	assert.Equal(t, "p-1", got.EntityID)
	assert.Equal(t, model.OpCreate, got.Operation)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.JSONEq(t, `{"name":"Tea","price":10}`, string(got.Payload))

	missing, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOutboxListPendingFIFO(t *testing.T) {
	repo := NewOutboxRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.Insert(ctx, nil, newRecord("01C", model.EntityTransaction, "t-1", model.OpDelete, base.Add(2*time.Second))))
	require.NoError(t, repo.Insert(ctx, nil, newRecord("01A", model.EntityProduct, "p-1", model.OpCreate, base)))
	require.NoError(t, repo.Insert(ctx, nil, newRecord("01B", model.EntityTransaction, "t-1", model.OpUpdate, base.Add(time.Second))))

	recs, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	// oldest first, regardless of entity type
	assert.Equal(t, "01A", recs[0].ID)
	assert.Equal(t, "01B", recs[1].ID)
	assert.Equal(t, "01C", recs[2].ID)
}

func TestOutboxMarkSyncedIdempotent(t *testing.T) {
	repo := NewOutboxRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, nil, newRecord("01A", model.EntityProduct, "p-1", model.OpCreate, time.Now().UTC())))

	require.NoError(t, repo.MarkSynced(ctx, "01A"))
	require.NoError(t, repo.MarkSynced(ctx, "01A"))

	got, err := repo.Get(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSynced, got.Status)
	assert.Empty(t, got.LastError)

	// synced is terminal: a late MarkFailed must not resurrect the record
	require.NoError(t, repo.MarkFailed(ctx, "01A", "too late"))
	got, err = repo.Get(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSynced, got.Status)

	n, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxMarkFailedKeepsRecordEligible(t *testing.T) {
	repo := NewOutboxRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, nil, newRecord("01A", model.EntityProduct, "p-1", model.OpCreate, time.Now().UTC())))

	require.NoError(t, repo.MarkFailed(ctx, "01A", "status=500"))
	require.NoError(t, repo.MarkFailed(ctx, "01A", "status=500"))

	got, err := repo.Get(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "status=500", got.LastError)

	// failed records stay in the drain set
	recs, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	n, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOutboxInsertJoinsCallerTx(t *testing.T) {
	dbx := newTestDB(t)
	repo := NewOutboxRepository(dbx)
	ctx := context.Background()

	tx, err := dbx.BeginTxx(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, repo.Insert(ctx, tx, newRecord("01A", model.EntityProduct, "p-1", model.OpCreate, time.Now().UTC())))
	require.NoError(t, tx.Rollback())

	// rolled back with the caller's unit of work
	n, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
