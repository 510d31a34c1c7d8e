package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nimasrn/statement-ledger/internal/idempotency"
	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/nimasrn/statement-ledger/internal/services"
	xhttp "github.com/nimasrn/statement-ledger/pkg/http"
	"github.com/nimasrn/statement-ledger/pkg/logger"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return errors.New("request body is empty")
	}
	return json.Unmarshal(body, dst)
}

// bind decodes the body into dst and validates its struct tags.
func bind(ctx *xhttp.RequestCtx, dst any) bool {
	if err := readJSON(ctx, dst); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps a service error onto its status code. Storage errors
// are logged and hidden from the caller.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	status, msg := classify(ctx, err)
	writeError(ctx, status, msg)
}

func classify(ctx *xhttp.RequestCtx, err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return xhttp.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrNotFound):
		return xhttp.StatusNotFound, services.ErrNotFound.Error()
	case errors.Is(err, idempotency.ErrCommitInFlight):
		return xhttp.StatusConflict, err.Error()
	case errors.Is(err, idempotency.ErrEmptyKey):
		return xhttp.StatusBadRequest, err.Error()
	}
	logger.Error("request failed", "path", string(ctx.Path()), "error", err)
	return xhttp.StatusInternalServerError, "internal error"
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func pathParam(ctx *xhttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}

// userID prefers the body value and falls back to the userId query arg.
func userID(ctx *xhttp.RequestCtx, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return query(ctx, "userId")
}

// parseFilter reads the list filter from query args. Unknown args are
// ignored; malformed values are an error.
func parseFilter(ctx *xhttp.RequestCtx) (model.TransactionFilter, error) {
	var (
		f   model.TransactionFilter
		err error
	)
	if v := query(ctx, "dateFrom"); v != "" {
		d, e := model.ParseDate(v)
		if e != nil {
			return f, fmt.Errorf("dateFrom: %w", e)
		}
		f.DateFrom = &d
	}
	if v := query(ctx, "dateTo"); v != "" {
		d, e := model.ParseDate(v)
		if e != nil {
			return f, fmt.Errorf("dateTo: %w", e)
		}
		f.DateTo = &d
	}
	if v := query(ctx, "categoryIds"); v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				f.CategoryIDs = append(f.CategoryIDs, id)
			}
		}
	}
	if v := query(ctx, "accountIdentifier"); v != "" {
		f.AccountIdentifier = &v
	}
	f.Search = query(ctx, "search")
	f.Type = model.TransactionType(query(ctx, "transactionType"))
	if f.MinAmount, err = queryDecimal(ctx, "minAmount"); err != nil {
		return f, err
	}
	if f.MaxAmount, err = queryDecimal(ctx, "maxAmount"); err != nil {
		return f, err
	}
	f.DateOrder = model.DateOrder(strings.ToLower(query(ctx, "dateOrder")))
	if f.Limit, err = queryInt(ctx, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(ctx, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func queryInt(ctx *xhttp.RequestCtx, key string) (int, error) {
	v := query(ctx, key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func queryDecimal(ctx *xhttp.RequestCtx, key string) (*decimal.Decimal, error) {
	v := query(ctx, key)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &d, nil
}
