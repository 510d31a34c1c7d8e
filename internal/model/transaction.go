package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidTransaction = errors.New("invalid transaction")

type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon,omitempty"`
}

// Transaction is one persisted ledger entry. At most one of AmountIn and
// AmountOut is set, and when set it is positive.
type Transaction struct {
	ID                string           `json:"id"`
	UserID            string           `json:"userId"`
	Date              Date             `json:"date"`
	Description       string           `json:"description"`
	Label             *string          `json:"label"`
	CategoryID        *string          `json:"categoryId"`
	Category          *Category        `json:"category,omitempty"`
	AccountIdentifier *string          `json:"accountIdentifier"`
	Source            *string          `json:"source"`
	AmountIn          *decimal.Decimal `json:"amountIn"`
	AmountOut         *decimal.Decimal `json:"amountOut"`
	Balance           *decimal.Decimal `json:"balance"`
	Metadata          Metadata         `json:"metadata"`
	Linkage           *Linkage         `json:"linkage"`
	ImportBatchID     *string          `json:"importBatchId"`
	CreatedAt         time.Time        `json:"createdAt"`
}

// ImportTransaction is a raw candidate produced by a statement parser.
type ImportTransaction struct {
	Date              Date             `json:"date"`
	Description       string           `json:"description"`
	Label             *string          `json:"label,omitempty"`
	CategoryID        *string          `json:"categoryId,omitempty"`
	AccountIdentifier *string          `json:"accountIdentifier,omitempty"`
	Source            *string          `json:"source,omitempty"`
	AmountIn          *decimal.Decimal `json:"amountIn,omitempty"`
	AmountOut         *decimal.Decimal `json:"amountOut,omitempty"`
	Balance           *decimal.Decimal `json:"balance,omitempty"`
	Metadata          Metadata         `json:"metadata"`
	Linkage           *PendingLinkage  `json:"linkage,omitempty"`
}

// Normalize validates the candidate in place: a zero amount becomes absent,
// empty optional strings become nil.
func (t *ImportTransaction) Normalize() error {
	if t.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidTransaction)
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidTransaction)
	}

	var err error
	if t.AmountIn, err = normalizeAmount("amountIn", t.AmountIn); err != nil {
		return err
	}
	if t.AmountOut, err = normalizeAmount("amountOut", t.AmountOut); err != nil {
		return err
	}
	if t.AmountIn != nil && t.AmountOut != nil {
		return fmt.Errorf("%w: amountIn and amountOut cannot both be set", ErrInvalidTransaction)
	}

	t.Label = emptyToNil(t.Label)
	t.CategoryID = emptyToNil(t.CategoryID)
	t.AccountIdentifier = emptyToNil(t.AccountIdentifier)
	t.Source = emptyToNil(t.Source)
	return nil
}

// HasAmount reports whether either side carries a value.
func (t *ImportTransaction) HasAmount() bool {
	return t.AmountIn != nil || t.AmountOut != nil
}

func normalizeAmount(field string, v *decimal.Decimal) (*decimal.Decimal, error) {
	if v == nil || v.IsZero() {
		return nil, nil
	}
	if v.IsNegative() {
		return nil, fmt.Errorf("%w: %s must not be negative", ErrInvalidTransaction, field)
	}
	return v, nil
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// LinkedTransactions is the expanded view of one transaction's linkage.
type LinkedTransactions struct {
	Reimburses   []*Transaction `json:"reimburses"`
	ReimbursedBy []*Transaction `json:"reimbursedBy"`
}
