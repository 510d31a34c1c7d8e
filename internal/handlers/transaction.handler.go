package handlers

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"time"

	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/nimasrn/statement-ledger/internal/services"
	xhttp "github.com/nimasrn/statement-ledger/pkg/http"
)

type TransactionService interface {
	List(ctx context.Context, userID string, f model.TransactionFilter) (*services.ListResult, error)
	Get(ctx context.Context, userID, id string) (*model.Transaction, error)
	Delete(ctx context.Context, userID, id string) error
	BulkUpdate(ctx context.Context, userID string, ids []string, updates model.TransactionUpdates) (int64, error)
	BulkUpdateByFilter(ctx context.Context, userID string, f model.TransactionFilter, excludeIDs []string, updates model.TransactionUpdates) (int64, error)
	BulkDelete(ctx context.Context, userID string, ids []string) (int64, error)
	BulkDeleteByFilter(ctx context.Context, userID string, f model.TransactionFilter, excludeIDs []string) (int64, error)
	Export(ctx context.Context, userID string, req services.ExportRequest, w io.Writer) (int, error)
	SearchForReimbursement(ctx context.Context, userID, query string, limit int) ([]*model.Transaction, error)
	GetLinked(ctx context.Context, userID, id string) (*model.LinkedTransactions, error)
	ClearLinkage(ctx context.Context, userID, id string) (*model.Transaction, error)
	LinkReimbursement(ctx context.Context, userID, id string, targetIDs []string) (*model.Transaction, error)
	MarkInternal(ctx context.Context, userID, id string, autoDetected bool, reason string) (*model.Transaction, error)
}

type TransactionHandler struct {
	svc TransactionService
}

// RegisterTransactionRoutes mounts the collection routes under /transactions
// and the single-row routes under /transaction/{id}.
func RegisterTransactionRoutes(e *xhttp.Group, h *TransactionHandler) {
	e.GET("/transactions", h.List)
	e.GET("/transactions/search-reimbursement", h.SearchForReimbursement)
	e.POST("/transactions/export", h.Export)
	e.PATCH("/transactions/bulk", h.BulkUpdate)
	e.DELETE("/transactions/bulk", h.BulkDelete)
	e.PATCH("/transactions/bulk-by-filter", h.BulkUpdateByFilter)
	e.DELETE("/transactions/bulk-by-filter", h.BulkDeleteByFilter)

	e.GET("/transaction/{id}", h.Get)
	e.DELETE("/transaction/{id}", h.Delete)
	e.GET("/transaction/{id}/linked", h.GetLinked)
	e.DELETE("/transaction/{id}/linkage", h.ClearLinkage)
	e.POST("/transaction/{id}/link-reimbursement", h.LinkReimbursement)
	e.POST("/transaction/{id}/mark-internal", h.MarkInternal)
}

func NewTransactionHandler(transactionService TransactionService) *TransactionHandler {
	return &TransactionHandler{
		svc: transactionService,
	}
}

type bulkUpdateRequest struct {
	UserID  string                   `json:"userId" validate:"required"`
	IDs     []string                 `json:"ids" validate:"required,min=1,dive,required"`
	Updates model.TransactionUpdates `json:"updates"`
}

type bulkUpdateByFilterRequest struct {
	UserID     string                   `json:"userId" validate:"required"`
	Filters    model.TransactionFilter  `json:"filters"`
	ExcludeIDs []string                 `json:"excludeIds"`
	Updates    model.TransactionUpdates `json:"updates"`
}

type bulkDeleteRequest struct {
	UserID string   `json:"userId" validate:"required"`
	IDs    []string `json:"ids" validate:"required,min=1,dive,required"`
}

type bulkDeleteByFilterRequest struct {
	UserID     string                  `json:"userId" validate:"required"`
	Filters    model.TransactionFilter `json:"filters"`
	ExcludeIDs []string                `json:"excludeIds"`
}

type exportRequest struct {
	UserID     string                  `json:"userId" validate:"required"`
	IDs        []string                `json:"ids"`
	Filters    model.TransactionFilter `json:"filters"`
	ExcludeIDs []string                `json:"excludeIds"`
}

type linkReimbursementRequest struct {
	UserID    string   `json:"userId"`
	TargetIDs []string `json:"targetIds" validate:"required,min=1,dive,required"`
}

type markInternalRequest struct {
	UserID          string `json:"userId"`
	AutoDetected    bool   `json:"autoDetected"`
	DetectionReason string `json:"detectionReason"`
}

type userRequest struct {
	UserID string `json:"userId"`
}

type updatedResponse struct {
	Success      bool  `json:"success"`
	UpdatedCount int64 `json:"updatedCount"`
}

type deletedResponse struct {
	Success      bool  `json:"success"`
	DeletedCount int64 `json:"deletedCount"`
}

type transactionsResponse struct {
	Transactions []*model.Transaction `json:"transactions"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *TransactionHandler) List(ctx *xhttp.RequestCtx) {
	f, err := parseFilter(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.List(ctx, query(ctx, "userId"), f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, res)
}

func (h *TransactionHandler) SearchForReimbursement(ctx *xhttp.RequestCtx) {
	limit, err := queryInt(ctx, "limit")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	txns, err := h.svc.SearchForReimbursement(ctx, query(ctx, "userId"), query(ctx, "query"), limit)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, transactionsResponse{Transactions: txns})
}

// Export renders the whole CSV before answering so a storage error can still
// produce a JSON error response.
func (h *TransactionHandler) Export(ctx *xhttp.RequestCtx) {
	var req exportRequest
	if !bind(ctx, &req) {
		return
	}

	var buf bytes.Buffer
	_, err := h.svc.Export(ctx, req.UserID, services.ExportRequest{
		IDs:        req.IDs,
		Filter:     req.Filters,
		ExcludeIDs: req.ExcludeIDs,
	}, &buf)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	filename := "transactions-" + time.Now().UTC().Format(model.DateLayout) + ".csv"
	ctx.Response.Header.Set("Content-Type", "text/csv; charset=utf-8")
	ctx.Response.Header.Set("Content-Disposition", "attachment; filename="+strconv.Quote(filename))
	ctx.Response.SetStatusCode(xhttp.StatusOK)
	ctx.Response.SetBodyRaw(buf.Bytes())
}

func (h *TransactionHandler) BulkUpdate(ctx *xhttp.RequestCtx) {
	var req bulkUpdateRequest
	if !bind(ctx, &req) {
		return
	}
	n, err := h.svc.BulkUpdate(ctx, req.UserID, req.IDs, req.Updates)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, updatedResponse{Success: true, UpdatedCount: n})
}

func (h *TransactionHandler) BulkUpdateByFilter(ctx *xhttp.RequestCtx) {
	var req bulkUpdateByFilterRequest
	if !bind(ctx, &req) {
		return
	}
	n, err := h.svc.BulkUpdateByFilter(ctx, req.UserID, req.Filters, req.ExcludeIDs, req.Updates)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, updatedResponse{Success: true, UpdatedCount: n})
}

func (h *TransactionHandler) BulkDelete(ctx *xhttp.RequestCtx) {
	var req bulkDeleteRequest
	if !bind(ctx, &req) {
		return
	}
	n, err := h.svc.BulkDelete(ctx, req.UserID, req.IDs)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, deletedResponse{Success: true, DeletedCount: n})
}

func (h *TransactionHandler) BulkDeleteByFilter(ctx *xhttp.RequestCtx) {
	var req bulkDeleteByFilterRequest
	if !bind(ctx, &req) {
		return
	}
	n, err := h.svc.BulkDeleteByFilter(ctx, req.UserID, req.Filters, req.ExcludeIDs)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, deletedResponse{Success: true, DeletedCount: n})
}

func (h *TransactionHandler) Get(ctx *xhttp.RequestCtx) {
	txn, err := h.svc.Get(ctx, query(ctx, "userId"), pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, txn)
}

func (h *TransactionHandler) Delete(ctx *xhttp.RequestCtx) {
	var req userRequest
	if !bindOptional(ctx, &req) {
		return
	}
	if err := h.svc.Delete(ctx, userID(ctx, req.UserID), pathParam(ctx, "id")); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, deletedResponse{Success: true, DeletedCount: 1})
}

func (h *TransactionHandler) GetLinked(ctx *xhttp.RequestCtx) {
	linked, err := h.svc.GetLinked(ctx, query(ctx, "userId"), pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, linked)
}

func (h *TransactionHandler) ClearLinkage(ctx *xhttp.RequestCtx) {
	var req userRequest
	if !bindOptional(ctx, &req) {
		return
	}
	txn, err := h.svc.ClearLinkage(ctx, userID(ctx, req.UserID), pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, txn)
}

func (h *TransactionHandler) LinkReimbursement(ctx *xhttp.RequestCtx) {
	var req linkReimbursementRequest
	if !bind(ctx, &req) {
		return
	}
	txn, err := h.svc.LinkReimbursement(ctx, userID(ctx, req.UserID), pathParam(ctx, "id"), req.TargetIDs)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, txn)
}

func (h *TransactionHandler) MarkInternal(ctx *xhttp.RequestCtx) {
	var req markInternalRequest
	if !bindOptional(ctx, &req) {
		return
	}
	txn, err := h.svc.MarkInternal(ctx, userID(ctx, req.UserID), pathParam(ctx, "id"), req.AutoDetected, req.DetectionReason)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, txn)
}

// bindOptional is bind for routes whose body may be omitted.
func bindOptional(ctx *xhttp.RequestCtx, dst any) bool {
	if len(ctx.PostBody()) == 0 {
		return true
	}
	return bind(ctx, dst)
}
