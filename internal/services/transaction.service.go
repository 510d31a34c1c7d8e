package services

import (
	"context"
	"io"
	"slices"
	"strings"

	"github.com/nimasrn/statement-ledger/internal/ledgercsv"
	"github.com/nimasrn/statement-ledger/internal/linkage"
	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/nimasrn/statement-ledger/pkg/logger"
	"github.com/nimasrn/statement-ledger/pkg/prom"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

type ListResult struct {
	Transactions []*model.Transaction `json:"transactions"`
	Total        int64                `json:"total"`
}

// ExportRequest selects rows either by explicit IDs or by Filter minus
// ExcludeIDs.
type ExportRequest struct {
	IDs        []string
	Filter     model.TransactionFilter
	ExcludeIDs []string
}

type TransactionService struct {
	transactions TransactionRepository
	categories   CategoryRepository
}

func NewTransactionService(transactions TransactionRepository, categories CategoryRepository) *TransactionService {
	return &TransactionService{
		transactions: transactions,
		categories:   categories,
	}
}

func (s *TransactionService) List(ctx context.Context, userID string, f model.TransactionFilter) (*ListResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	txns, total, err := s.transactions.List(ctx, userID, f)
	if err != nil {
		return nil, classify(err)
	}
	if txns == nil {
		txns = []*model.Transaction{}
	}
	return &ListResult{Transactions: txns, Total: total}, nil
}

func (s *TransactionService) Get(ctx context.Context, userID, id string) (*model.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	txn, err := s.transactions.Get(ctx, userID, id)
	if err != nil {
		return nil, classify(err)
	}
	return txn, nil
}

// Delete removes one row and the references other rows hold to it.
func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	err := s.transactions.WithinTransaction(ctx, func(ctx context.Context) error {
		txn, err := s.transactions.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		_, err = s.deleteRows(ctx, userID, []*model.Transaction{txn})
		return err
	})
	return classify(err)
}

func (s *TransactionService) BulkUpdate(ctx context.Context, userID string, ids []string, updates model.TransactionUpdates) (int64, error) {
	if len(ids) == 0 {
		return 0, validationf("ids must not be empty")
	}
	return s.update(ctx, userID, model.TransactionFilter{}, model.Selection{ExplicitIDs: ids}, updates)
}

func (s *TransactionService) BulkUpdateByFilter(ctx context.Context, userID string, f model.TransactionFilter, excludeIDs []string, updates model.TransactionUpdates) (int64, error) {
	return s.update(ctx, userID, f, model.Selection{ExcludeIDs: excludeIDs}, updates)
}

func (s *TransactionService) update(ctx context.Context, userID string, f model.TransactionFilter, sel model.Selection, updates model.TransactionUpdates) (int64, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	if updates.IsEmpty() {
		return 0, validationf("updates must change at least one field")
	}

	var n int64
	err := s.transactions.WithinTransaction(ctx, func(ctx context.Context) error {
		if c := updates.CategoryID; c != nil && *c != "" {
			owned, err := s.categories.CountOwned(ctx, userID, []string{*c})
			if err != nil {
				return err
			}
			if owned != 1 {
				return validationf("unknown category")
			}
		}
		var err error
		n, err = s.transactions.UpdateWhere(ctx, userID, f, sel, updates)
		return err
	})
	if err != nil {
		return 0, classify(err)
	}
	prom.AddBulkMutation("update", n)
	return n, nil
}

func (s *TransactionService) BulkDelete(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, validationf("ids must not be empty")
	}
	return s.delete(ctx, userID, model.TransactionFilter{}, model.Selection{ExplicitIDs: ids})
}

func (s *TransactionService) BulkDeleteByFilter(ctx context.Context, userID string, f model.TransactionFilter, excludeIDs []string) (int64, error) {
	return s.delete(ctx, userID, f, model.Selection{ExcludeIDs: excludeIDs})
}

func (s *TransactionService) delete(ctx context.Context, userID string, f model.TransactionFilter, sel model.Selection) (int64, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	var n int64
	err := s.transactions.WithinTransaction(ctx, func(ctx context.Context) error {
		rows, err := s.transactions.FindAll(ctx, userID, f, sel)
		if err != nil {
			return err
		}
		n, err = s.deleteRows(ctx, userID, rows)
		return err
	})
	if err != nil {
		return 0, classify(err)
	}
	prom.AddBulkMutation("delete", n)
	return n, nil
}

// deleteRows drops rows and strips their ids from the linkage of every
// surviving partner. Must run inside a transaction.
func (s *TransactionService) deleteRows(ctx context.Context, userID string, rows []*model.Transaction) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	doomed := make(map[string]bool, len(rows))
	ids := make([]string, len(rows))
	for i, r := range rows {
		doomed[r.ID] = true
		ids[i] = r.ID
	}

	var partnerIDs []string
	for _, r := range rows {
		for _, p := range linkage.Partners(r.Linkage) {
			if !doomed[p] && !slices.Contains(partnerIDs, p) {
				partnerIDs = append(partnerIDs, p)
			}
		}
	}

	partners, err := s.transactions.FindByIDs(ctx, userID, partnerIDs)
	if err != nil {
		return 0, err
	}
	for _, p := range partners {
		l := p.Linkage
		for _, r := range rows {
			l = linkage.Without(l, r.ID)
		}
		if err = s.relink(ctx, userID, p, l); err != nil {
			return 0, err
		}
	}

	return s.transactions.DeleteByIDs(ctx, userID, ids)
}

// relink stores the reduced linkage of a surviving partner. A reimbursement
// left with no targets also leaves its category.
func (s *TransactionService) relink(ctx context.Context, userID string, p *model.Transaction, l *model.Linkage) error {
	if l == nil && p.Linkage != nil && p.Linkage.Type == model.LinkageReimbursement {
		return s.transactions.UpdateLinkageAndCategory(ctx, userID, p.ID, nil, nil)
	}
	return s.transactions.UpdateLinkage(ctx, userID, p.ID, l)
}

// Export writes the selected rows as CSV to w.
func (s *TransactionService) Export(ctx context.Context, userID string, req ExportRequest, w io.Writer) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	sel := model.Selection{ExcludeIDs: req.ExcludeIDs}
	if req.IDs != nil {
		if len(req.IDs) == 0 {
			return 0, validationf("ids must not be empty")
		}
		sel.ExplicitIDs = req.IDs
	}

	txns, err := s.transactions.FindAll(ctx, userID, req.Filter, sel)
	if err != nil {
		return 0, classify(err)
	}
	if err = ledgercsv.WriteTransactions(w, txns); err != nil {
		return 0, err
	}
	return len(txns), nil
}

// SearchForReimbursement lists expenses matching query that can still be
// named as reimbursement targets.
func (s *TransactionService) SearchForReimbursement(ctx context.Context, userID, query string, limit int) ([]*model.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	txns, err := s.transactions.SearchReimbursable(ctx, userID, query, limit)
	if err != nil {
		return nil, classify(err)
	}
	if txns == nil {
		txns = []*model.Transaction{}
	}
	return txns, nil
}

func (s *TransactionService) GetLinked(ctx context.Context, userID, id string) (*model.LinkedTransactions, error) {
	txn, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	out := &model.LinkedTransactions{Reimburses: []*model.Transaction{}, ReimbursedBy: []*model.Transaction{}}
	if txn.Linkage == nil {
		return out, nil
	}
	if len(txn.Linkage.Reimburses) > 0 {
		if out.Reimburses, err = s.transactions.FindByIDs(ctx, userID, txn.Linkage.Reimburses); err != nil {
			return nil, err
		}
	}
	if len(txn.Linkage.ReimbursedBy) > 0 {
		if out.ReimbursedBy, err = s.transactions.FindByIDs(ctx, userID, txn.Linkage.ReimbursedBy); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ClearLinkage removes the row's linkage and category, and removes the row
// from the linkage of every partner.
func (s *TransactionService) ClearLinkage(ctx context.Context, userID, id string) (*model.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var out *model.Transaction
	err := s.transactions.WithinTransaction(ctx, func(ctx context.Context) error {
		txn, err := s.transactions.Get(ctx, userID, id)
		if err != nil {
			return err
		}

		partners, err := s.transactions.FindByIDs(ctx, userID, linkage.Partners(txn.Linkage))
		if err != nil {
			return err
		}
		for _, p := range partners {
			if err = s.relink(ctx, userID, p, linkage.Without(p.Linkage, id)); err != nil {
				return err
			}
		}

		if err = s.transactions.UpdateLinkageAndCategory(ctx, userID, id, nil, nil); err != nil {
			return err
		}
		out, err = s.transactions.Get(ctx, userID, id)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// LinkReimbursement marks id as reimbursing targetIDs, merging with any
// targets it already has, and records the reverse link on each target.
func (s *TransactionService) LinkReimbursement(ctx context.Context, userID, id string, targetIDs []string) (*model.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var targets []string
	for _, t := range targetIDs {
		t = strings.TrimSpace(t)
		switch {
		case t == "":
			return nil, validationf("target ids must not be empty")
		case t == id:
			return nil, validationf("a transaction cannot reimburse itself")
		case !slices.Contains(targets, t):
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		return nil, validationf("at least one target id is required")
	}

	var out *model.Transaction
	err := s.transactions.WithinTransaction(ctx, func(ctx context.Context) error {
		src, err := s.transactions.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		if err = linkage.CheckTransition(src.Linkage, model.LinkageReimbursement); err != nil {
			return err
		}

		rows, err := s.transactions.FindByIDs(ctx, userID, targets)
		if err != nil {
			return err
		}
		if len(rows) != len(targets) {
			return ErrNotFound
		}
		for _, r := range rows {
			if err = linkage.CheckTarget(r.Linkage); err != nil {
				return err
			}
		}

		reserved, err := s.categories.EnsureReserved(ctx, userID)
		if err != nil {
			return err
		}

		merged := slices.Clone(linkage.Partners(src.Linkage))
		for _, t := range targets {
			if !slices.Contains(merged, t) {
				merged = append(merged, t)
			}
		}
		categoryID := reserved[model.CategoryReimbursement].ID
		if err = s.transactions.UpdateLinkageAndCategory(ctx, userID, id, model.NewReimbursementLinkage(merged), &categoryID); err != nil {
			return err
		}

		for _, r := range rows {
			if err = s.transactions.UpdateLinkage(ctx, userID, r.ID, linkage.MergeReimbursedBy(r.Linkage, []string{id})); err != nil {
				return err
			}
		}

		out, err = s.transactions.Get(ctx, userID, id)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	logger.Info("reimbursement linked", "user_id", userID, "id", id, "targets", len(targets))
	return out, nil
}

// MarkInternal tags id as an internal transfer and moves it to the reserved
// Internal category.
func (s *TransactionService) MarkInternal(ctx context.Context, userID, id string, autoDetected bool, reason string) (*model.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var out *model.Transaction
	err := s.transactions.WithinTransaction(ctx, func(ctx context.Context) error {
		txn, err := s.transactions.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		if err = linkage.CheckTransition(txn.Linkage, model.LinkageInternal); err != nil {
			return err
		}
		reserved, err := s.categories.EnsureReserved(ctx, userID)
		if err != nil {
			return err
		}
		categoryID := reserved[model.CategoryInternal].ID
		if err = s.transactions.UpdateLinkageAndCategory(ctx, userID, id, model.NewInternalLinkage(autoDetected, reason), &categoryID); err != nil {
			return err
		}
		out, err = s.transactions.Get(ctx, userID, id)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return validationf("userId is required")
	}
	return nil
}
