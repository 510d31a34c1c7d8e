package repository

import (
	"time"

	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/nimasrn/statement-ledger/pkg/pg"
	"github.com/shopspring/decimal"
)

type TransactionEntity struct {
	pg.Model
	UserID            string                      `gorm:"column:user_id;not null;index:idx_transactions_user_date,priority:1"`
	Date              time.Time                   `gorm:"column:date;not null;index:idx_transactions_user_date,priority:2"`
	Description       string                      `gorm:"column:description;not null"`
	Label             *string                     `gorm:"column:label"`
	CategoryID        *string                     `gorm:"column:category_id;index"`
	Category          *CategoryEntity             `gorm:"foreignKey:CategoryID;references:ID"`
	AccountIdentifier *string                     `gorm:"column:account_identifier"`
	Source            *string                     `gorm:"column:source"`
	AmountIn          decimal.NullDecimal         `gorm:"column:amount_in;type:numeric(14,2)"`
	AmountOut         decimal.NullDecimal         `gorm:"column:amount_out;type:numeric(14,2)"`
	Balance           decimal.NullDecimal         `gorm:"column:balance;type:numeric(14,2)"`
	Metadata          jsonColumn[model.Metadata]  `gorm:"column:metadata;type:text"`
	Linkage           jsonColumn[model.Linkage]   `gorm:"column:linkage;type:text"`
	LinkageType       *string                     `gorm:"column:linkage_type;index"`
	ImportBatchID     *string                     `gorm:"column:import_batch_id;index"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	e := &TransactionEntity{
		Model:             pg.Model{ID: m.ID, CreatedAt: m.CreatedAt},
		UserID:            m.UserID,
		Date:              m.Date.Time,
		Description:       m.Description,
		Label:             m.Label,
		CategoryID:        m.CategoryID,
		AccountIdentifier: m.AccountIdentifier,
		Source:            m.Source,
		AmountIn:          toNullDecimal(m.AmountIn),
		AmountOut:         toNullDecimal(m.AmountOut),
		Balance:           toNullDecimal(m.Balance),
		Linkage:           newJSONColumn(m.Linkage),
		LinkageType:       linkageType(m.Linkage),
		ImportBatchID:     m.ImportBatchID,
	}
	if m.Metadata.Len() > 0 {
		md := m.Metadata
		e.Metadata = newJSONColumn(&md)
	}
	return e
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	m := &model.Transaction{
		ID:                e.ID,
		UserID:            e.UserID,
		Date:              model.NewDate(e.Date),
		Description:       e.Description,
		Label:             e.Label,
		CategoryID:        e.CategoryID,
		AccountIdentifier: e.AccountIdentifier,
		Source:            e.Source,
		AmountIn:          fromNullDecimal(e.AmountIn),
		AmountOut:         fromNullDecimal(e.AmountOut),
		Balance:           fromNullDecimal(e.Balance),
		Linkage:           e.Linkage.Val,
		ImportBatchID:     e.ImportBatchID,
		CreatedAt:         e.CreatedAt,
	}
	if e.Metadata.Val != nil {
		m.Metadata = *e.Metadata.Val
	}
	if e.Category != nil {
		m.Category = toCategoryModel(e.Category)
	}
	return m
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func linkageType(l *model.Linkage) *string {
	if l == nil {
		return nil
	}
	t := string(l.Type)
	return &t
}
