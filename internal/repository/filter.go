package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nimasrn/statement-ledger/internal/model"
	"gorm.io/gorm"
)

var ErrInvalidFilter = errors.New("invalid filter")

const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// Predicate is a gorm scope selecting the rows a filter matches. The same
// predicate backs list, export, bulk update and bulk delete so every
// operation agrees on the row set.
type Predicate func(db *gorm.DB) *gorm.DB

// BuildPredicate validates f and sel and compiles them into a Predicate
// scoped to userID.
func BuildPredicate(userID string, f model.TransactionFilter, sel model.Selection) (Predicate, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidFilter)
	}
	if sel.ExplicitIDs != nil && sel.ExcludeIDs != nil {
		return nil, fmt.Errorf("%w: explicit ids and exclude ids cannot be combined", ErrInvalidFilter)
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(f.DateTo.Time) {
		return nil, fmt.Errorf("%w: dateFrom must not be after dateTo", ErrInvalidFilter)
	}
	switch f.Type {
	case "", model.TransactionIncome, model.TransactionExpense:
	default:
		return nil, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidFilter, f.Type)
	}
	if f.MinAmount != nil && f.MinAmount.IsNegative() {
		return nil, fmt.Errorf("%w: minAmount must not be negative", ErrInvalidFilter)
	}
	if f.MaxAmount != nil && f.MaxAmount.IsNegative() {
		return nil, fmt.Errorf("%w: maxAmount must not be negative", ErrInvalidFilter)
	}
	if f.MinAmount != nil && f.MaxAmount != nil && f.MinAmount.GreaterThan(*f.MaxAmount) {
		return nil, fmt.Errorf("%w: minAmount must not exceed maxAmount", ErrInvalidFilter)
	}

	search := strings.ToLower(strings.TrimSpace(f.Search))
	categories := append([]string(nil), f.CategoryIDs...)
	explicit := sel.ExplicitIDs
	exclude := sel.ExcludeIDs

	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", userID)
		if f.DateFrom != nil {
			db = db.Where("date >= ?", f.DateFrom.Time)
		}
		if f.DateTo != nil {
			db = db.Where("date <= ?", f.DateTo.Time)
		}
		if len(categories) > 0 {
			db = db.Where("category_id IN ?", categories)
		}
		if f.AccountIdentifier != nil {
			db = db.Where("account_identifier = ?", *f.AccountIdentifier)
		}
		if search != "" {
			pattern := "%" + escapeLike(search) + "%"
			db = db.Where(`(LOWER(description) LIKE ? ESCAPE '\' OR LOWER(label) LIKE ? ESCAPE '\')`, pattern, pattern)
		}
		switch f.Type {
		case model.TransactionIncome:
			db = db.Where("amount_in IS NOT NULL")
		case model.TransactionExpense:
			db = db.Where("amount_out IS NOT NULL")
		}
		switch {
		case f.MinAmount != nil && f.MaxAmount != nil:
			db = db.Where("((amount_in >= ? AND amount_in <= ?) OR (amount_out >= ? AND amount_out <= ?))",
				*f.MinAmount, *f.MaxAmount, *f.MinAmount, *f.MaxAmount)
		case f.MinAmount != nil:
			db = db.Where("(amount_in >= ? OR amount_out >= ?)", *f.MinAmount, *f.MinAmount)
		case f.MaxAmount != nil:
			db = db.Where("(amount_in <= ? OR amount_out <= ?)", *f.MaxAmount, *f.MaxAmount)
		}
		if explicit != nil {
			if len(explicit) == 0 {
				db = db.Where("1 = 0")
			} else {
				db = db.Where("id IN ?", explicit)
			}
		}
		if len(exclude) > 0 {
			db = db.Where("id NOT IN ?", exclude)
		}
		return db
	}, nil
}

// Page returns the ordering and pagination scope for list queries.
func Page(f model.TransactionFilter) (Predicate, error) {
	order := "date DESC, created_at DESC, id"
	switch f.DateOrder {
	case "", model.DateOrderDesc:
	case model.DateOrderAsc:
		order = "date ASC, created_at ASC, id"
	default:
		return nil, fmt.Errorf("%w: unknown date order %q", ErrInvalidFilter, f.DateOrder)
	}
	if f.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrInvalidFilter)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(order).Limit(limit).Offset(f.Offset)
	}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
