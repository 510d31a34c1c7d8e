package ledgercsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nimasrn/statement-ledger/internal/model"
)

const (
	ParserID   = "generic_csv"
	SourceName = "csv"
)

var ErrMissingColumn = errors.New("csv header must contain date and description")

// fallback layouts tried after YYYY-MM-DD.
var dateLayouts = []string{"01/02/2006", "2006/01/02", time.RFC3339}

var amountCleaner = strings.NewReplacer(",", "", "$", "", " ", "")

type columns struct {
	date, desc, label, in, out, signed, balance, account, source int
	extra                                                         []int
}

// ReadGeneric parses a headered CSV into import candidates. Recognised
// columns are matched case-insensitively; any other column is copied into the
// candidate's metadata in column order. Rows with no date or description are
// skipped.
func ReadGeneric(r io.Reader) ([]model.ImportTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var out []model.ImportTransaction
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		txn, ok, err := parseRow(header, cols, rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		if ok {
			out = append(out, txn)
		}
	}
	return out, nil
}

func mapColumns(header []string) (columns, error) {
	c := columns{date: -1, desc: -1, label: -1, in: -1, out: -1, signed: -1, balance: -1, account: -1, source: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "date":
			c.date = i
		case "description":
			c.desc = i
		case "label":
			c.label = i
		case "amountin", "credit":
			c.in = i
		case "amountout", "debit":
			c.out = i
		case "amount":
			c.signed = i
		case "balance":
			c.balance = i
		case "accountidentifier", "account":
			c.account = i
		case "source":
			c.source = i
		default:
			c.extra = append(c.extra, i)
		}
	}
	if c.date < 0 || c.desc < 0 {
		return c, ErrMissingColumn
	}
	return c, nil
}

func parseRow(header []string, c columns, rec []string) (model.ImportTransaction, bool, error) {
	var txn model.ImportTransaction

	rawDate, desc := field(rec, c.date), raw(rec, c.desc)
	if rawDate == "" || strings.TrimSpace(desc) == "" {
		return txn, false, nil
	}
	date, err := parseDate(rawDate)
	if err != nil {
		return txn, false, err
	}
	txn.Date = date
	txn.Description = desc
	txn.Label = optional(raw(rec, c.label))
	txn.AccountIdentifier = optional(field(rec, c.account))
	txn.Source = optional(field(rec, c.source))

	if txn.AmountIn, err = parseAmount("amountIn", field(rec, c.in)); err != nil {
		return txn, false, err
	}
	if txn.AmountOut, err = parseAmount("amountOut", field(rec, c.out)); err != nil {
		return txn, false, err
	}
	if txn.Balance, err = parseAmount("balance", field(rec, c.balance)); err != nil {
		return txn, false, err
	}
	signed, err := parseAmount("amount", field(rec, c.signed))
	if err != nil {
		return txn, false, err
	}
	if signed != nil && txn.AmountIn == nil && txn.AmountOut == nil {
		switch {
		case signed.IsPositive():
			txn.AmountIn = signed
		case signed.IsNegative():
			abs := signed.Abs()
			txn.AmountOut = &abs
		}
	}

	for _, i := range c.extra {
		txn.Metadata.Set(strings.TrimSpace(header[i]), field(rec, i))
	}
	txn.Metadata.Set("source", SourceName)
	txn.Metadata.Set("parserId", ParserID)
	return txn, true, nil
}

func parseDate(s string) (model.Date, error) {
	if d, err := model.ParseDate(s); err == nil {
		return d, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.NewDate(t), nil
		}
	}
	return model.Date{}, fmt.Errorf("parsing date %q", s)
}

func parseAmount(name, s string) (*decimal.Decimal, error) {
	s = amountCleaner.Replace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parsing %s %q: %w", name, s, err)
	}
	return &d, nil
}

// raw returns the cell as written. Descriptions and labels are kept verbatim.
func raw(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func field(rec []string, i int) string {
	return strings.TrimSpace(raw(rec, i))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
