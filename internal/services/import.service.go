package services

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/nimasrn/statement-ledger/internal/idempotency"
	"github.com/nimasrn/statement-ledger/internal/linkage"
	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/nimasrn/statement-ledger/pkg/logger"
	"github.com/nimasrn/statement-ledger/pkg/pg"
	"github.com/nimasrn/statement-ledger/pkg/prom"
)

const DefaultImportRetention = 7 * 24 * time.Hour

type ImportService struct {
	transactions TransactionRepository
	categories   CategoryRepository
	batches      ImportBatchRepository
	checker      DuplicateChecker
	idempotency  *idempotency.Store
	retention    time.Duration
	now          func() time.Time
}

func NewImportService(transactions TransactionRepository, categories CategoryRepository, batches ImportBatchRepository, checker DuplicateChecker, retention time.Duration) *ImportService {
	if retention <= 0 {
		retention = DefaultImportRetention
	}
	return &ImportService{
		transactions: transactions,
		categories:   categories,
		batches:      batches,
		checker:      checker,
		retention:    retention,
		now:          time.Now,
	}
}

// WithIdempotency makes commits carrying an idempotency key replay-safe.
func (s *ImportService) WithIdempotency(store *idempotency.Store) *ImportService {
	s.idempotency = store
	return s
}

// CheckImport reports which candidates look like rows the user already has.
// It never writes.
func (s *ImportService) CheckImport(ctx context.Context, userID string, candidates []model.ImportTransaction) (*model.CheckImportResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationf("userId is required")
	}

	normalized := slices.Clone(candidates)
	for i := range normalized {
		if err := normalized[i].Normalize(); err != nil {
			return nil, validationf("transaction %d: %v", i, err)
		}
	}

	found, err := s.checker.CheckBulk(ctx, userID, normalized)
	if err != nil {
		return nil, err
	}

	result := &model.CheckImportResult{Duplicates: make([]model.DuplicateGroup, 0, len(found))}
	for idx, matches := range found {
		result.Duplicates = append(result.Duplicates, model.DuplicateGroup{Index: idx, Matches: matches})
	}
	sort.Slice(result.Duplicates, func(i, j int) bool {
		return result.Duplicates[i].Index < result.Duplicates[j].Index
	})
	result.CleanCount = len(candidates) - len(result.Duplicates)

	prom.AddDuplicateCheck(len(candidates), len(result.Duplicates))
	logger.Debug("import checked", "user_id", userID, "candidates", len(candidates), "flagged", len(result.Duplicates))
	return result, nil
}

// CommitImport persists the selected candidates, their batch record and every
// linkage they carry in a single database transaction. idempotencyKey may be
// empty.
func (s *ImportService) CommitImport(ctx context.Context, req model.CommitImportRequest, idempotencyKey string) (*model.CommitResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, validationf("userId is required")
	}
	if idempotencyKey == "" || s.idempotency == nil {
		return s.commit(ctx, req)
	}

	var replay model.CommitResult
	claim, replayed, err := s.idempotency.Begin(ctx, req.UserID, idempotencyKey, &replay)
	if err != nil {
		return nil, err
	}
	if replayed {
		return &replay, nil
	}
	defer claim.Release(ctx)

	result, err := s.commit(ctx, req)
	if err != nil {
		return nil, err
	}
	if err = claim.Complete(ctx, result); err != nil {
		logger.Warn("failed to store idempotent commit result", "user_id", req.UserID, "error", err)
	}
	return result, nil
}

func (s *ImportService) commit(ctx context.Context, req model.CommitImportRequest) (result *model.CommitResult, err error) {
	start := s.now()
	defer func() {
		outcome, rows := "success", 0
		switch {
		case errors.Is(err, ErrValidation):
			outcome = "rejected"
		case err != nil:
			outcome = "failure"
		default:
			rows = result.ImportedCount
		}
		prom.AddCommit(outcome, rows, s.now().Sub(start))
	}()

	plan, err := s.plan(req)
	if err != nil {
		return nil, err
	}

	var batchID *string
	err = s.transactions.WithinTransaction(ctx, func(ctx context.Context) error {
		reserved, err := s.categories.EnsureReserved(ctx, req.UserID)
		if err != nil {
			return err
		}
		if err = s.checkCategoriesOwned(ctx, req.UserID, plan.categoryIDs); err != nil {
			return err
		}

		if req.BatchInfo != nil {
			committedAt := s.now().UTC()
			batch := &model.ImportBatch{
				ID:          pg.NewID(),
				UserID:      req.UserID,
				Filename:    req.BatchInfo.Filename,
				FileType:    req.BatchInfo.FileType,
				ParserID:    req.BatchInfo.ParserID,
				Status:      model.ImportBatchCommitted,
				CommittedAt: committedAt,
				ExpiresAt:   committedAt.Add(s.retention),
			}
			if err = s.batches.Create(ctx, batch); err != nil {
				return err
			}
			batchID = &batch.ID
		}

		txns := make([]*model.Transaction, 0, len(plan.selected))
		for _, idx := range plan.selected {
			txns = append(txns, plan.transaction(idx, req.UserID, batchID, reserved))
		}
		if err = s.transactions.CreateMany(ctx, txns); err != nil {
			return err
		}

		return s.writeBacklinks(ctx, req.UserID, plan.resolution.External)
	})
	if err != nil {
		logger.Warn("import commit rolled back", "user_id", req.UserID, "error", err)
		return nil, classify(err)
	}

	logger.Info("import committed", "user_id", req.UserID, "imported", len(plan.selected), "batch_id", batchID)
	return &model.CommitResult{ImportedCount: len(plan.selected), BatchID: batchID}, nil
}

// commitPlan is everything computed before the first write.
type commitPlan struct {
	rows        []model.ImportTransaction
	selected    []int
	ids         map[int]string
	resolution  *linkage.Resolution
	categoryIDs []string
}

func (s *ImportService) plan(req model.CommitImportRequest) (*commitPlan, error) {
	if len(req.SelectedIndices) == 0 {
		return nil, validationf("selectedIndices must not be empty")
	}
	if req.BatchInfo != nil {
		if req.BatchInfo.Filename == "" || req.BatchInfo.FileType == "" || req.BatchInfo.ParserID == "" {
			return nil, validationf("batchInfo requires filename, fileType and parserId")
		}
	}

	selected := slices.Clone(req.SelectedIndices)
	slices.Sort(selected)
	selected = slices.Compact(selected)
	for _, idx := range selected {
		if idx < 0 || idx >= len(req.Transactions) {
			return nil, validationf("selected index %d is out of range", idx)
		}
	}

	rows := slices.Clone(req.Transactions)
	batch := linkage.NewBatchContext(rows, selected)
	var categoryIDs []string
	for _, idx := range selected {
		if err := rows[idx].Normalize(); err != nil {
			return nil, validationf("transaction %d: %v", idx, err)
		}
		normalized, err := linkage.Validate(rows[idx].Linkage, idx, batch)
		if err != nil {
			return nil, classify(err)
		}
		rows[idx].Linkage = normalized
		if c := rows[idx].CategoryID; c != nil && !slices.Contains(categoryIDs, *c) {
			categoryIDs = append(categoryIDs, *c)
		}
	}

	ids := make(map[int]string, len(selected))
	for _, idx := range selected {
		ids[idx] = pg.NewID()
	}
	resolution, err := linkage.Resolve(batch, ids)
	if err != nil {
		return nil, classify(err)
	}

	return &commitPlan{
		rows:        rows,
		selected:    selected,
		ids:         ids,
		resolution:  resolution,
		categoryIDs: categoryIDs,
	}, nil
}

func (p *commitPlan) transaction(idx int, userID string, batchID *string, reserved map[string]*model.Category) *model.Transaction {
	row := p.rows[idx]
	l := p.resolution.Linkages[idx]

	categoryID := row.CategoryID
	if l != nil {
		if name := model.ReservedCategoryFor(l.Type); name != "" {
			categoryID = &reserved[name].ID
		}
	}
	if categoryID == nil {
		categoryID = &reserved[model.CategoryUncategorized].ID
	}

	return &model.Transaction{
		ID:                p.ids[idx],
		UserID:            userID,
		Date:              row.Date,
		Description:       row.Description,
		Label:             row.Label,
		CategoryID:        categoryID,
		AccountIdentifier: row.AccountIdentifier,
		Source:            row.Source,
		AmountIn:          row.AmountIn,
		AmountOut:         row.AmountOut,
		Balance:           row.Balance,
		Metadata:          row.Metadata,
		Linkage:           l,
		ImportBatchID:     batchID,
	}
}

func (s *ImportService) checkCategoriesOwned(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	n, err := s.categories.CountOwned(ctx, userID, ids)
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return validationf("unknown category")
	}
	return nil
}

// writeBacklinks records the new reimbursers on already persisted targets.
func (s *ImportService) writeBacklinks(ctx context.Context, userID string, backlinks []linkage.Backlink) error {
	if len(backlinks) == 0 {
		return nil
	}
	ids := make([]string, len(backlinks))
	for i, b := range backlinks {
		ids[i] = b.TargetID
	}
	targets, err := s.transactions.FindByIDs(ctx, userID, ids)
	if err != nil {
		return err
	}
	byID := make(map[string]*model.Transaction, len(targets))
	for _, t := range targets {
		byID[t.ID] = t
	}

	for _, b := range backlinks {
		target, ok := byID[b.TargetID]
		if !ok {
			return ErrNotFound
		}
		if err = linkage.CheckTarget(target.Linkage); err != nil {
			return classify(err)
		}
		if err = s.transactions.UpdateLinkage(ctx, userID, target.ID, linkage.MergeReimbursedBy(target.Linkage, b.ReimbursedBy)); err != nil {
			return err
		}
	}
	return nil
}
