// Package linkage validates relationship tags on transactions and turns the
// batch-local form used during import into persisted ids.
package linkage

import (
	"errors"
	"fmt"
	"slices"

	"github.com/nimasrn/statement-ledger/internal/model"
)

// ErrUnresolved means a batch index had no id assigned at resolution time.
var ErrUnresolved = errors.New("unresolved batch index")

// BatchContext is the pending import a linkage is checked against.
type BatchContext struct {
	Rows     []model.ImportTransaction
	Selected []int

	selected map[int]bool
}

// NewBatchContext expects selected to be deduplicated and in range.
func NewBatchContext(rows []model.ImportTransaction, selected []int) *BatchContext {
	set := make(map[int]bool, len(selected))
	for _, i := range selected {
		set[i] = true
	}
	return &BatchContext{Rows: rows, Selected: selected, selected: set}
}

func (b *BatchContext) IsSelected(i int) bool {
	return b.selected[i]
}

// Validate checks the pending linkage of row owner and returns a normalised
// copy with duplicate targets removed. A nil linkage is valid.
func Validate(l *model.PendingLinkage, owner int, batch *BatchContext) (*model.PendingLinkage, error) {
	if l == nil {
		return nil, nil
	}

	switch l.Type {
	case model.LinkageInternal:
		if l.HasTargets() {
			return nil, fmt.Errorf("%w: row %d: internal linkage cannot reference other transactions", model.ErrInvalidLinkage, owner)
		}
		return &model.PendingLinkage{
			Type:            model.LinkageInternal,
			AutoDetected:    l.AutoDetected,
			DetectionReason: l.DetectionReason,
		}, nil

	case model.LinkageReimbursement:
		if !l.HasTargets() {
			return nil, fmt.Errorf("%w: row %d: reimbursement must reference at least one transaction", model.ErrInvalidLinkage, owner)
		}

		out := &model.PendingLinkage{Type: model.LinkageReimbursement}
		for _, id := range l.Reimburses {
			if id == "" {
				return nil, fmt.Errorf("%w: row %d: empty target id", model.ErrInvalidLinkage, owner)
			}
			if !slices.Contains(out.Reimburses, id) {
				out.Reimburses = append(out.Reimburses, id)
			}
		}
		for _, idx := range l.PendingBatchIndices {
			if err := checkBatchTarget(idx, owner, batch); err != nil {
				return nil, err
			}
			if !slices.Contains(out.PendingBatchIndices, idx) {
				out.PendingBatchIndices = append(out.PendingBatchIndices, idx)
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: row %d: type %q cannot be set on import", model.ErrInvalidLinkage, owner, l.Type)
	}
}

func checkBatchTarget(idx, owner int, batch *BatchContext) error {
	switch {
	case batch == nil:
		return fmt.Errorf("%w: row %d: batch targets given outside an import", model.ErrInvalidLinkage, owner)
	case idx < 0 || idx >= len(batch.Rows):
		return fmt.Errorf("%w: row %d: batch index %d out of range", model.ErrInvalidLinkage, owner, idx)
	case idx == owner:
		return fmt.Errorf("%w: row %d: a transaction cannot reimburse itself", model.ErrInvalidLinkage, owner)
	case !batch.IsSelected(idx):
		return fmt.Errorf("%w: row %d: batch index %d is not selected for import", model.ErrInvalidLinkage, owner, idx)
	case batch.Rows[idx].Linkage != nil:
		return fmt.Errorf("%w: row %d: batch index %d already carries a linkage", model.ErrInvalidLinkage, owner, idx)
	}
	return nil
}

// CheckTransition reports whether a persisted row carrying current may be
// given a linkage of type next. Switching between internal and reimbursement
// requires clearing first, and a reimbursed row cannot take either.
func CheckTransition(current *model.Linkage, next model.LinkageType) error {
	if current == nil {
		return nil
	}
	switch {
	case current.Type == model.LinkageReimbursed:
		return fmt.Errorf("%w: transaction is already reimbursed; clear its linkage first", model.ErrInvalidLinkage)
	case current.Type != next:
		return fmt.Errorf("%w: transaction is linked as %s; clear its linkage first", model.ErrInvalidLinkage, current.Type)
	}
	return nil
}

// CheckTarget reports whether a persisted row can be named as a
// reimbursement target.
func CheckTarget(target *model.Linkage) error {
	if target == nil || target.Type == model.LinkageReimbursed {
		return nil
	}
	return fmt.Errorf("%w: target is linked as %s", model.ErrInvalidLinkage, target.Type)
}

// Backlink is a reciprocal update owed to an already persisted row.
type Backlink struct {
	TargetID     string
	ReimbursedBy []string
}

type Resolution struct {
	// Linkages holds the final linkage for each batch index that has one.
	Linkages map[int]*model.Linkage
	// External lists persisted targets in first-reference order.
	External []Backlink
}

// Resolve turns the validated pending linkages of every selected row into
// persisted linkages using ids, which maps batch index to the id the row will
// be inserted with.
func Resolve(batch *BatchContext, ids map[int]string) (*Resolution, error) {
	res := &Resolution{Linkages: make(map[int]*model.Linkage)}
	external := make(map[string]int)
	inBatch := make(map[int][]string)
	var inBatchOrder []int

	for _, idx := range batch.Selected {
		pending := batch.Rows[idx].Linkage
		if pending == nil {
			continue
		}
		self, ok := ids[idx]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnresolved, idx)
		}

		switch pending.Type {
		case model.LinkageInternal:
			res.Linkages[idx] = model.NewInternalLinkage(pending.AutoDetected, pending.DetectionReason)

		case model.LinkageReimbursement:
			var targets []string
			for _, tid := range pending.Reimburses {
				targets = appendUnique(targets, tid)
				pos, seen := external[tid]
				if !seen {
					pos = len(res.External)
					external[tid] = pos
					res.External = append(res.External, Backlink{TargetID: tid})
				}
				res.External[pos].ReimbursedBy = appendUnique(res.External[pos].ReimbursedBy, self)
			}
			for _, j := range pending.PendingBatchIndices {
				tid, ok := ids[j]
				if !ok {
					return nil, fmt.Errorf("%w: %d referenced by row %d", ErrUnresolved, j, idx)
				}
				targets = appendUnique(targets, tid)
				if _, seen := inBatch[j]; !seen {
					inBatchOrder = append(inBatchOrder, j)
				}
				inBatch[j] = appendUnique(inBatch[j], self)
			}
			res.Linkages[idx] = model.NewReimbursementLinkage(targets)

		default:
			return nil, fmt.Errorf("%w: row %d: unexpected type %q", model.ErrInvalidLinkage, idx, pending.Type)
		}
	}

	for _, j := range inBatchOrder {
		if res.Linkages[j] != nil {
			return nil, fmt.Errorf("%w: row %d is both linked and a reimbursement target", model.ErrInvalidLinkage, j)
		}
		res.Linkages[j] = model.NewReimbursedLinkage(inBatch[j])
	}
	return res, nil
}

// MergeReimbursedBy returns target's linkage with by added to its
// reimbursers. target must have passed CheckTarget.
func MergeReimbursedBy(target *model.Linkage, by []string) *model.Linkage {
	var merged []string
	if target != nil {
		merged = slices.Clone(target.ReimbursedBy)
	}
	for _, id := range by {
		merged = appendUnique(merged, id)
	}
	return model.NewReimbursedLinkage(merged)
}

// Without returns l with id removed from its targets. A reimbursement or
// reimbursed linkage left with no targets becomes nil.
func Without(l *model.Linkage, id string) *model.Linkage {
	if l == nil {
		return nil
	}
	switch l.Type {
	case model.LinkageReimbursement:
		rest := remove(l.Reimburses, id)
		if len(rest) == 0 {
			return nil
		}
		return model.NewReimbursementLinkage(rest)
	case model.LinkageReimbursed:
		rest := remove(l.ReimbursedBy, id)
		if len(rest) == 0 {
			return nil
		}
		return model.NewReimbursedLinkage(rest)
	}
	return l
}

// Partners lists every id l points at.
func Partners(l *model.Linkage) []string {
	if l == nil {
		return nil
	}
	switch l.Type {
	case model.LinkageReimbursement:
		return l.Reimburses
	case model.LinkageReimbursed:
		return l.ReimbursedBy
	}
	return nil
}

func appendUnique(list []string, id string) []string {
	if slices.Contains(list, id) {
		return list
	}
	return append(list, id)
}

func remove(list []string, id string) []string {
	var out []string
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
