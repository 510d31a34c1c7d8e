package model

import "github.com/shopspring/decimal"

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

type DateOrder string

const (
	DateOrderAsc  DateOrder = "asc"
	DateOrderDesc DateOrder = "desc"
)

// TransactionFilter is the shared query criteria for list, export and bulk
// mutation. Zero values mean "no constraint".
type TransactionFilter struct {
	DateFrom          *Date            `json:"dateFrom,omitempty"`
	DateTo            *Date            `json:"dateTo,omitempty"`
	CategoryIDs       []string         `json:"categoryIds,omitempty"`
	AccountIdentifier *string          `json:"accountIdentifier,omitempty"`
	Search            string           `json:"search,omitempty"`
	Type              TransactionType  `json:"transactionType,omitempty"`
	MinAmount         *decimal.Decimal `json:"minAmount,omitempty"`
	MaxAmount         *decimal.Decimal `json:"maxAmount,omitempty"`
	DateOrder         DateOrder        `json:"dateOrder,omitempty"`
	Limit             int              `json:"limit,omitempty"`
	Offset            int              `json:"offset,omitempty"`
}

// Selection narrows a filter to explicit rows. ExplicitIDs and ExcludeIDs are
// separate call modes; a nil slice means the mode is not in use.
type Selection struct {
	ExplicitIDs []string
	ExcludeIDs  []string
}

// TransactionUpdates lists the fields a bulk edit may change. A nil pointer
// leaves the column alone; a pointer to "" clears it.
type TransactionUpdates struct {
	Label             *string `json:"label,omitempty"`
	CategoryID        *string `json:"categoryId,omitempty"`
	AccountIdentifier *string `json:"accountIdentifier,omitempty"`
}

func (u TransactionUpdates) IsEmpty() bool {
	return u.Label == nil && u.CategoryID == nil && u.AccountIdentifier == nil
}
