package handlers

import (
	"context"

	"github.com/nimasrn/statement-ledger/internal/model"
	xhttp "github.com/nimasrn/statement-ledger/pkg/http"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type ImportService interface {
	CheckImport(ctx context.Context, userID string, candidates []model.ImportTransaction) (*model.CheckImportResult, error)
	CommitImport(ctx context.Context, req model.CommitImportRequest, idempotencyKey string) (*model.CommitResult, error)
}

type ImportHandler struct {
	svc ImportService
}

func RegisterImportRoutes(e *xhttp.Group, h *ImportHandler) {
	e.POST("/transactions/check-import", h.CheckImport)
	e.POST("/transactions/commit-import", h.CommitImport)
}

func NewImportHandler(importService ImportService) *ImportHandler {
	return &ImportHandler{
		svc: importService,
	}
}

type checkImportRequest struct {
	UserID       string                    `json:"userId" validate:"required"`
	Transactions []model.ImportTransaction `json:"transactions" validate:"required"`
}

type commitImportRequest struct {
	UserID          string                    `json:"userId" validate:"required"`
	Transactions    []model.ImportTransaction `json:"transactions" validate:"required"`
	SelectedIndices []int                     `json:"selectedIndices" validate:"required"`
	BatchInfo       *model.BatchInfo          `json:"batchInfo"`
}

type commitImportResponse struct {
	Success       bool    `json:"success"`
	ImportedCount int     `json:"importedCount"`
	BatchID       *string `json:"batchId"`
}

type commitFailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *ImportHandler) CheckImport(ctx *xhttp.RequestCtx) {
	var req checkImportRequest
	if !bind(ctx, &req) {
		return
	}
	res, err := h.svc.CheckImport(ctx, req.UserID, req.Transactions)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, res)
}

// CommitImport answers every failure with {"success":false,"error":...}.
func (h *ImportHandler) CommitImport(ctx *xhttp.RequestCtx) {
	var req commitImportRequest
	if err := readJSON(ctx, &req); err != nil {
		writeJSON(ctx, xhttp.StatusBadRequest, commitFailureResponse{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeJSON(ctx, xhttp.StatusBadRequest, commitFailureResponse{Error: validationMessage(err)})
		return
	}

	key := string(ctx.Request.Header.Peek(IdempotencyKeyHeader))
	res, err := h.svc.CommitImport(ctx, model.CommitImportRequest{
		UserID:          req.UserID,
		Transactions:    req.Transactions,
		SelectedIndices: req.SelectedIndices,
		BatchInfo:       req.BatchInfo,
	}, key)
	if err != nil {
		status, msg := classify(ctx, err)
		writeJSON(ctx, status, commitFailureResponse{Error: msg})
		return
	}
	writeJSON(ctx, xhttp.StatusOK, commitImportResponse{
		Success:       true,
		ImportedCount: res.ImportedCount,
		BatchID:       res.BatchID,
	})
}
