package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/nimasrn/statement-ledger/internal/idempotency"
	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/nimasrn/statement-ledger/internal/services"
	xhttp "github.com/nimasrn/statement-ledger/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockImportService struct {
	mock.Mock
}

func (m *MockImportService) CheckImport(ctx context.Context, userID string, candidates []model.ImportTransaction) (*model.CheckImportResult, error) {
	args := m.Called(ctx, userID, candidates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CheckImportResult), args.Error(1)
}

func (m *MockImportService) CommitImport(ctx context.Context, req model.CommitImportRequest, key string) (*model.CommitResult, error) {
	args := m.Called(ctx, req, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CommitResult), args.Error(1)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func decodeBody(t *testing.T, ctx *xhttp.RequestCtx) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &out))
	return out
}

func TestImportHandler_CheckImport(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockImportService)
		handler := NewImportHandler(svc)

		svc.On("CheckImport", mock.Anything, "user-1", mock.MatchedBy(func(c []model.ImportTransaction) bool {
			return len(c) == 1 && c[0].Description == "Coffee" && c[0].AmountOut.String() == "4.5"
		})).Return(&model.CheckImportResult{Duplicates: []model.DuplicateGroup{}, CleanCount: 1}, nil)

		body := []byte(`{"userId":"user-1","transactions":[{"date":"2024-03-01","description":"Coffee","amountOut":"4.50"}]}`)
		ctx := setupTestContext("POST", "/transactions/check-import", body)
		handler.CheckImport(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		resp := decodeBody(t, ctx)
		assert.EqualValues(t, 1, resp["cleanCount"])
		assert.Empty(t, resp["duplicates"])
		svc.AssertExpectations(t)
	})

	t.Run("missing userId", func(t *testing.T) {
		svc := new(MockImportService)
		ctx := setupTestContext("POST", "/transactions/check-import", []byte(`{"transactions":[]}`))
		NewImportHandler(svc).CheckImport(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		assert.Contains(t, decodeBody(t, ctx)["error"], "UserID")
		svc.AssertNotCalled(t, "CheckImport", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		ctx := setupTestContext("POST", "/transactions/check-import", []byte("nope"))
		NewImportHandler(new(MockImportService)).CheckImport(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		assert.Contains(t, decodeBody(t, ctx)["error"], "invalid JSON")
	})

	t.Run("matcher failure is a 500", func(t *testing.T) {
		svc := new(MockImportService)
		svc.On("CheckImport", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

		ctx := setupTestContext("POST", "/transactions/check-import", []byte(`{"userId":"u","transactions":[]}`))
		NewImportHandler(svc).CheckImport(ctx)

		assert.Equal(t, 500, ctx.Response.StatusCode())
		assert.Equal(t, "internal error", decodeBody(t, ctx)["error"])
	})
}

func TestImportHandler_CommitImport(t *testing.T) {
	body := []byte(`{
		"userId": "user-1",
		"transactions": [
			{"date": "2024-03-01", "description": "Dinner", "amountOut": "30"},
			{"date": "2024-03-02", "description": "Refund", "amountIn": "15",
			 "linkage": {"type": "reimbursement", "_pendingBatchIndices": [0]}}
		],
		"selectedIndices": [0, 1],
		"batchInfo": {"filename": "march.csv", "fileType": "csv", "parserId": "generic_csv"}
	}`)

	t.Run("success with idempotency key", func(t *testing.T) {
		svc := new(MockImportService)
		batchID := "batch-1"
		svc.On("CommitImport", mock.Anything, mock.MatchedBy(func(r model.CommitImportRequest) bool {
			return r.UserID == "user-1" && len(r.Transactions) == 2 &&
				r.Transactions[1].Linkage.PendingBatchIndices[0] == 0 && r.BatchInfo.ParserID == "generic_csv"
		}), "key-1").Return(&model.CommitResult{ImportedCount: 2, BatchID: &batchID}, nil)

		ctx := setupTestContext("POST", "/transactions/commit-import", body)
		ctx.Request.Header.Set(IdempotencyKeyHeader, "key-1")
		NewImportHandler(svc).CommitImport(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		resp := decodeBody(t, ctx)
		assert.Equal(t, true, resp["success"])
		assert.EqualValues(t, 2, resp["importedCount"])
		assert.Equal(t, "batch-1", resp["batchId"])
		svc.AssertExpectations(t)
	})

	statuses := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: selectedIndices must not be empty", services.ErrValidation), 400},
		{services.ErrNotFound, 404},
		{idempotency.ErrCommitInFlight, 409},
		{errors.New("disk full"), 500},
	}
	for _, tc := range statuses {
		t.Run(fmt.Sprintf("failure %d", tc.status), func(t *testing.T) {
			svc := new(MockImportService)
			svc.On("CommitImport", mock.Anything, mock.Anything, "").Return(nil, tc.err)

			ctx := setupTestContext("POST", "/transactions/commit-import", body)
			NewImportHandler(svc).CommitImport(ctx)

			assert.Equal(t, tc.status, ctx.Response.StatusCode())
			resp := decodeBody(t, ctx)
			assert.Equal(t, false, resp["success"])
			assert.NotEmpty(t, resp["error"])
		})
	}

	t.Run("reimbursed linkage is rejected on input", func(t *testing.T) {
		svc := new(MockImportService)
		bad := []byte(`{"userId":"u","transactions":[{"date":"2024-03-01","description":"x","amountIn":"1","linkage":{"type":"reimbursed"}}],"selectedIndices":[0]}`)

		ctx := setupTestContext("POST", "/transactions/commit-import", bad)
		NewImportHandler(svc).CommitImport(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		assert.Equal(t, false, decodeBody(t, ctx)["success"])
		svc.AssertNotCalled(t, "CommitImport", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("incomplete batch info", func(t *testing.T) {
		svc := new(MockImportService)
		bad := []byte(`{"userId":"u","transactions":[],"selectedIndices":[0],"batchInfo":{"filename":"a.csv"}}`)

		ctx := setupTestContext("POST", "/transactions/commit-import", bad)
		NewImportHandler(svc).CommitImport(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		assert.Contains(t, decodeBody(t, ctx)["error"], "FileType")
	})
}
