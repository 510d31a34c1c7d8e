package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/nimasrn/statement-ledger/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a row does not exist for the given user.
var ErrNotFound = errors.New("record not found")

const createBatchSize = 200

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

// CreateMany inserts txns with their ids already assigned.
func (r *TransactionRepository) CreateMany(ctx context.Context, txns []*model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	entities := make([]*TransactionEntity, len(txns))
	for i, t := range txns {
		entities[i] = toTransactionEntity(t)
	}
	if err := r.Write(ctx).WithContext(ctx).CreateInBatches(entities, createBatchSize).Error; err != nil {
		return err
	}
	for i, e := range entities {
		txns[i].CreatedAt = e.CreatedAt
	}
	return nil
}

// FindDuplicateCandidates returns the user's rows dated within window days of
// date whose amount_in equals amountIn or amount_out equals amountOut. Sides
// that are nil take no part in the match.
func (r *TransactionRepository) FindDuplicateCandidates(ctx context.Context, userID string, date model.Date, window int, amountIn, amountOut *decimal.Decimal) ([]*model.Transaction, error) {
	if amountIn == nil && amountOut == nil {
		return nil, nil
	}

	q := r.Read(ctx).WithContext(ctx).Model(&TransactionEntity{}).
		Where("user_id = ?", userID).
		Where("date >= ? AND date <= ?", date.AddDays(-window).Time, date.AddDays(window).Time)

	switch {
	case amountIn != nil && amountOut != nil:
		q = q.Where("(amount_in = ? OR amount_out = ?)", *amountIn, *amountOut)
	case amountIn != nil:
		q = q.Where("amount_in = ?", *amountIn)
	default:
		q = q.Where("amount_out = ?", *amountOut)
	}

	var entities []*TransactionEntity
	if err := q.Order("date ASC, created_at ASC, id").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

// List returns one page of the rows matching f and the total match count.
func (r *TransactionRepository) List(ctx context.Context, userID string, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	pred, err := BuildPredicate(userID, f, model.Selection{})
	if err != nil {
		return nil, 0, err
	}
	page, err := Page(f)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err = r.Read(ctx).WithContext(ctx).Model(&TransactionEntity{}).Scopes(pred).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entities []*TransactionEntity
	err = r.Read(ctx).WithContext(ctx).
		Scopes(pred, page).
		Preload("Category").
		Find(&entities).Error
	if err != nil {
		return nil, 0, err
	}
	return toTransactionModels(entities), total, nil
}

// FindAll returns every row matching f and sel, unpaginated.
func (r *TransactionRepository) FindAll(ctx context.Context, userID string, f model.TransactionFilter, sel model.Selection) ([]*model.Transaction, error) {
	pred, err := BuildPredicate(userID, f, sel)
	if err != nil {
		return nil, err
	}
	order := "date DESC, created_at DESC, id"
	if f.DateOrder == model.DateOrderAsc {
		order = "date ASC, created_at ASC, id"
	}

	var entities []*TransactionEntity
	err = r.Read(ctx).WithContext(ctx).
		Scopes(pred).
		Preload("Category").
		Order(order).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

// FindByIDs returns the user's rows among ids. Ids that do not exist or
// belong to someone else are silently absent.
func (r *TransactionRepository) FindByIDs(ctx context.Context, userID string, ids []string) ([]*model.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var entities []*TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Preload("Category").
		Order("date DESC, created_at DESC, id").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

func (r *TransactionRepository) Get(ctx context.Context, userID, id string) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Preload("Category").
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// UpdateLinkage replaces the linkage of one row. A nil linkage clears it.
func (r *TransactionRepository) UpdateLinkage(ctx context.Context, userID, id string, l *model.Linkage) error {
	return r.updateOne(ctx, userID, id, map[string]any{
		"linkage":      newJSONColumn(l),
		"linkage_type": linkageType(l),
	})
}

// UpdateLinkageAndCategory replaces the linkage and the category of one row.
// Nil values clear the columns.
func (r *TransactionRepository) UpdateLinkageAndCategory(ctx context.Context, userID, id string, l *model.Linkage, categoryID *string) error {
	return r.updateOne(ctx, userID, id, map[string]any{
		"linkage":      newJSONColumn(l),
		"linkage_type": linkageType(l),
		"category_id":  categoryID,
	})
}

func (r *TransactionRepository) updateOne(ctx context.Context, userID, id string, columns map[string]any) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("user_id = ? AND id = ?", userID, id).
		Updates(columns)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateWhere applies updates to every row matching f and sel and returns the
// number of rows changed.
func (r *TransactionRepository) UpdateWhere(ctx context.Context, userID string, f model.TransactionFilter, sel model.Selection, updates model.TransactionUpdates) (int64, error) {
	pred, err := BuildPredicate(userID, f, sel)
	if err != nil {
		return 0, err
	}
	columns := updateColumns(updates)
	if len(columns) == 0 {
		return 0, nil
	}
	res := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Scopes(pred).
		Updates(columns)
	return res.RowsAffected, res.Error
}

// DeleteByIDs removes the user's rows among ids.
func (r *TransactionRepository) DeleteByIDs(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.Write(ctx).WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Delete(&TransactionEntity{})
	return res.RowsAffected, res.Error
}

// SearchReimbursable finds expense rows whose description or label contains
// query and that may still be named as a reimbursement target.
func (r *TransactionRepository) SearchReimbursable(ctx context.Context, userID, query string, limit int) ([]*model.Transaction, error) {
	pred, err := BuildPredicate(userID, model.TransactionFilter{
		Search: query,
		Type:   model.TransactionExpense,
	}, model.Selection{})
	if err != nil {
		return nil, err
	}

	var entities []*TransactionEntity
	err = r.Read(ctx).WithContext(ctx).
		Scopes(pred).
		Where("(linkage_type IS NULL OR linkage_type = ?)", string(model.LinkageReimbursed)).
		Preload("Category").
		Order("date DESC, created_at DESC, id").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

func updateColumns(u model.TransactionUpdates) map[string]any {
	columns := map[string]any{}
	if u.Label != nil {
		columns["label"] = nilIfEmpty(*u.Label)
	}
	if u.CategoryID != nil {
		columns["category_id"] = nilIfEmpty(*u.CategoryID)
	}
	if u.AccountIdentifier != nil {
		columns["account_identifier"] = nilIfEmpty(*u.AccountIdentifier)
	}
	return columns
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
