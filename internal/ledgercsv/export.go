package ledgercsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nimasrn/statement-ledger/internal/model"
)

// Header is the column layout of an exported ledger.
const Header = "date,label,description,amountIn,amountOut,balance,categoryName,categoryColor,accountIdentifier,source"

const (
	colDate = iota
	colLabel
	colDesc
	colAmountIn
	colAmountOut
	colBalance
	colCategoryName
	colCategoryColor
	colAccount
	colSource
	numFields
)

// WriteTransactions writes txns to w, header first, in the order given.
func WriteTransactions(w io.Writer, txns []*model.Transaction) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, txn := range txns {
		if err := cw.Write(marshalRow(txn)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func marshalRow(txn *model.Transaction) []string {
	row := make([]string, numFields)
	row[colDate] = txn.Date.String()
	row[colLabel] = deref(txn.Label)
	row[colDesc] = txn.Description
	row[colAmountIn] = amount(txn.AmountIn)
	row[colAmountOut] = amount(txn.AmountOut)
	row[colBalance] = amount(txn.Balance)
	if txn.Category != nil {
		row[colCategoryName] = txn.Category.Name
		row[colCategoryColor] = txn.Category.Color
	}
	row[colAccount] = deref(txn.AccountIdentifier)
	row[colSource] = deref(txn.Source)
	return row
}

func amount(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
