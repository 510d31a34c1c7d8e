package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/nimasrn/statement-ledger/pkg/pg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *pg.DB {
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

	require.NoError(t, db.AutoMigrate(Entities()...))
	return pg.FromGorm(db)
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

func seedTransaction(t *testing.T, repo *TransactionRepository, txn *model.Transaction) *model.Transaction {
	t.Helper()
	if txn.ID == "" {
		txn.ID = pg.NewID()
	}
	if txn.UserID == "" {
		txn.UserID = "user-1"
	}
	if txn.Description == "" {
		txn.Description = "coffee shop"
	}
	if txn.Date.IsZero() {
		txn.Date = model.NewDate(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	}
	require.NoError(t, repo.CreateMany(context.Background(), []*model.Transaction{txn}))
	return txn
}
