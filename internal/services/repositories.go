package services

import (
	"context"

	"github.com/nimasrn/statement-ledger/internal/model"
)

type TransactionRepository interface {
	CreateMany(ctx context.Context, txns []*model.Transaction) error
	Get(ctx context.Context, userID, id string) (*model.Transaction, error)
	FindByIDs(ctx context.Context, userID string, ids []string) ([]*model.Transaction, error)
	List(ctx context.Context, userID string, f model.TransactionFilter) ([]*model.Transaction, int64, error)
	FindAll(ctx context.Context, userID string, f model.TransactionFilter, sel model.Selection) ([]*model.Transaction, error)
	SearchReimbursable(ctx context.Context, userID, query string, limit int) ([]*model.Transaction, error)
	UpdateLinkage(ctx context.Context, userID, id string, l *model.Linkage) error
	UpdateLinkageAndCategory(ctx context.Context, userID, id string, l *model.Linkage, categoryID *string) error
	UpdateWhere(ctx context.Context, userID string, f model.TransactionFilter, sel model.Selection, updates model.TransactionUpdates) (int64, error)
	DeleteByIDs(ctx context.Context, userID string, ids []string) (int64, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type CategoryRepository interface {
	EnsureReserved(ctx context.Context, userID string) (map[string]*model.Category, error)
	CountOwned(ctx context.Context, userID string, ids []string) (int64, error)
}

type ImportBatchRepository interface {
	Create(ctx context.Context, batch *model.ImportBatch) error
}

type DuplicateChecker interface {
	CheckBulk(ctx context.Context, userID string, candidates []model.ImportTransaction) (map[int][]model.DuplicateMatch, error)
}
