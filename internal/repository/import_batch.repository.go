package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/nimasrn/statement-ledger/pkg/pg"
	"gorm.io/gorm"
)

type ImportBatchRepository struct {
	*pg.DB
}

func NewImportBatchRepository(db *pg.DB) *ImportBatchRepository {
	return &ImportBatchRepository{
		db,
	}
}

func (r *ImportBatchRepository) Create(ctx context.Context, batch *model.ImportBatch) error {
	entity := toImportBatchEntity(batch)
	return r.Write(ctx).WithContext(ctx).Create(entity).Error
}

func (r *ImportBatchRepository) Get(ctx context.Context, userID, id string) (*model.ImportBatch, error) {
	var entity ImportBatchEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toImportBatchModel(&entity), nil
}

// DeleteExpired removes every batch whose expiry is before now. Transactions
// of those batches are kept and detached.
func (r *ImportBatchRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	var deleted int64
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		expired := r.Write(ctx).WithContext(ctx).
			Model(&ImportBatchEntity{}).
			Select("id").
			Where("expires_at < ?", now)

		err := r.Write(ctx).WithContext(ctx).
			Model(&TransactionEntity{}).
			Where("import_batch_id IN (?)", expired).
			Update("import_batch_id", nil).Error
		if err != nil {
			return err
		}

		res := r.Write(ctx).WithContext(ctx).
			Where("expires_at < ?", now).
			Delete(&ImportBatchEntity{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}
