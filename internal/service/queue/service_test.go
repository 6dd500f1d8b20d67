package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/jmehdipour/pos-sync/internal/model"
	"github.com/jmehdipour/pos-sync/internal/repository"
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
`

func newTestService(t *testing.T) (*Service, *repository.OutboxRepositoryImpl, *sqlx.DB) {
	t.Helper()

	dbx, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	dbx.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = dbx.Close() })

	_, err = dbx.Exec(testSchema)
	require.NoError(t, err)

	repo := repository.NewOutboxRepository(dbx)

	return New(dbx, repo), repo, dbx
}

func TestEnqueueCreatesPendingRecord(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.Enqueue(ctx, model.EntityProduct, "p-1", model.OpCreate, []byte(`{"name":"Tea","price":10}`))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	n, err := svc.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, model.StatusPending, rec.Status)
	assert.Equal(t, model.OpCreate, rec.Operation)
}

func TestEnqueueValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, "", "p-1", model.OpCreate, []byte(`{}`))
	assert.ErrorIs(t, err, ErrMissingEntity)

	_, err = svc.Enqueue(ctx, model.EntityProduct, "", model.OpCreate, []byte(`{}`))
	assert.ErrorIs(t, err, ErrMissingEntity)

	_, err = svc.Enqueue(ctx, model.EntityProduct, "p-1", "upsert", []byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = svc.Enqueue(ctx, model.EntityProduct, "p-1", model.OpUpdate, nil)
	assert.ErrorIs(t, err, ErrMissingPayload)

	// deletes carry no payload
	_, err = svc.Enqueue(ctx, model.EntityProduct, "p-1", model.OpDelete, nil)
	assert.NoError(t, err)
}

func TestEnqueueIDsAreMonotonic(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, model.EntityProduct, "p-1", model.OpCreate, []byte(`{}`))
	require.NoError(t, err)
	second, err := svc.Enqueue(ctx, model.EntityProduct, "p-1", model.OpUpdate, []byte(`{}`))
	require.NoError(t, err)

	assert.Less(t, first, second)
}

func TestEnqueueTxRollsBackWithDomainWrite(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	err := svc.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := svc.EnqueueTx(ctx, tx, model.EntityTransaction, "t-1", model.OpCreate, []byte(`{"total":35}`)); err != nil {
			return err
		}
		// domain write fails after the enqueue
		return errors.New("domain write failed")
	})
	require.Error(t, err)

	n, err := svc.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "enqueue must roll back with the domain mutation")
}

func TestEnqueueTxCommitsWithDomainWrite(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	err := svc.WithinTx(ctx, func(tx *sqlx.Tx) error {
		_, err := svc.EnqueueTx(ctx, tx, model.EntityTransaction, "t-1", model.OpCreate, []byte(`{"total":35}`))
		return err
	})
	require.NoError(t, err)

	n, err := svc.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
