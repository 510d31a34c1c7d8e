package services

import (
	"context"
	"testing"

	"github.com/nimasrn/statement-ledger/internal/matcher"
	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/nimasrn/statement-ledger/internal/repository"
	"github.com/nimasrn/statement-ledger/pkg/pg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testUser = "user-1"

type fixture struct {
	db           *pg.DB
	transactions *repository.TransactionRepository
	categories   *repository.CategoryRepository
	batches      *repository.ImportBatchRepository
	imports      *ImportService
	ledger       *TransactionService
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(repository.Entities()...))

	f := &fixture{db: pg.FromGorm(db)}
	f.transactions = repository.NewTransactionRepository(f.db)
	f.categories = repository.NewCategoryRepository(f.db)
	f.batches = repository.NewImportBatchRepository(f.db)
	f.imports = NewImportService(f.transactions, f.categories, f.batches, matcher.New(f.transactions, 2), 0)
	f.ledger = NewTransactionService(f.transactions, f.categories)
	return f
}

// commit imports every candidate and returns the persisted rows in
// candidate order.
func (f *fixture) commit(t *testing.T, candidates ...model.ImportTransaction) []*model.Transaction {
	t.Helper()
	ctx := context.Background()
	seen := make(map[string]bool)
	for _, row := range f.all(t) {
		seen[row.ID] = true
	}

	indices := make([]int, len(candidates))
	for i := range candidates {
		indices[i] = i
	}
	res, err := f.imports.CommitImport(ctx, model.CommitImportRequest{
		UserID:          testUser,
		Transactions:    candidates,
		SelectedIndices: indices,
	}, "")
	require.NoError(t, err)
	require.Equal(t, len(candidates), res.ImportedCount)

	out := make([]*model.Transaction, len(candidates))
	for _, row := range f.all(t) {
		if seen[row.ID] {
			continue
		}
		for i, c := range candidates {
			if out[i] == nil && row.Description == c.Description && row.Date.Equal(c.Date.Time) {
				out[i] = row
				break
			}
		}
	}
	for i := range out {
		require.NotNil(t, out[i], "row %d not persisted", i)
	}
	return out
}

func (f *fixture) all(t *testing.T) []*model.Transaction {
	t.Helper()
	all, err := f.transactions.FindAll(context.Background(), testUser, model.TransactionFilter{DateOrder: model.DateOrderAsc}, model.Selection{})
	require.NoError(t, err)
	return all
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	return len(f.all(t))
}

func (f *fixture) get(t *testing.T, id string) *model.Transaction {
	t.Helper()
	txn, err := f.transactions.Get(context.Background(), testUser, id)
	require.NoError(t, err)
	return txn
}

func (f *fixture) reserved(t *testing.T) map[string]*model.Category {
	t.Helper()
	cats, err := f.categories.EnsureReserved(context.Background(), testUser)
	require.NoError(t, err)
	return cats
}

func day(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func ptr[T any](v T) *T {
	return &v
}

func expense(date, desc, amount string) model.ImportTransaction {
	return model.ImportTransaction{Date: day(date), Description: desc, AmountOut: dec(amount)}
}

func income(date, desc, amount string) model.ImportTransaction {
	return model.ImportTransaction{Date: day(date), Description: desc, AmountIn: dec(amount)}
}
