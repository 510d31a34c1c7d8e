package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/nimasrn/statement-ledger/pkg/pg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportBatchRepository_DeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	batches := NewImportBatchRepository(db)
	txns := NewTransactionRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	newBatch := func(expires time.Time) *model.ImportBatch {
		b := &model.ImportBatch{
			ID: pg.NewID(), UserID: "user-1", Filename: "march.csv", FileType: "csv", ParserID: "generic_csv",
			Status: model.ImportBatchCommitted, CommittedAt: expires.Add(-7 * 24 * time.Hour), ExpiresAt: expires,
		}
		require.NoError(t, batches.Create(ctx, b))
		return b
	}
	expired := newBatch(now.Add(-time.Hour))
	live := newBatch(now.Add(time.Hour))

	detached := seedTransaction(t, txns, &model.Transaction{ImportBatchID: &expired.ID})
	kept := seedTransaction(t, txns, &model.Transaction{ImportBatchID: &live.ID})

	n, err := batches.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = batches.Get(ctx, "user-1", expired.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = batches.Get(ctx, "user-1", live.ID)
	assert.NoError(t, err)

	got, err := txns.Get(ctx, "user-1", detached.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ImportBatchID)

	got, err = txns.Get(ctx, "user-1", kept.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ImportBatchID)
	assert.Equal(t, live.ID, *got.ImportBatchID)
}
