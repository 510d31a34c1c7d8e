package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidLinkage = errors.New("invalid linkage")

type LinkageType string

const (
	LinkageInternal      LinkageType = "internal"
	LinkageReimbursement LinkageType = "reimbursement"
	LinkageReimbursed    LinkageType = "reimbursed"
)

// Linkage is the persisted relationship tag of a transaction. Exactly one
// variant is populated, selected by Type:
//   - internal: no targets
//   - reimbursement: Reimburses lists the persisted ids being repaid
//   - reimbursed: ReimbursedBy lists the persisted ids repaying this row
type Linkage struct {
	Type            LinkageType `json:"type"`
	Reimburses      []string    `json:"reimburses,omitempty"`
	ReimbursedBy    []string    `json:"reimbursedBy,omitempty"`
	AutoDetected    bool        `json:"autoDetected,omitempty"`
	DetectionReason string      `json:"detectionReason,omitempty"`
}

func NewInternalLinkage(autoDetected bool, reason string) *Linkage {
	return &Linkage{Type: LinkageInternal, AutoDetected: autoDetected, DetectionReason: reason}
}

func NewReimbursementLinkage(targets []string) *Linkage {
	return &Linkage{Type: LinkageReimbursement, Reimburses: targets}
}

func NewReimbursedLinkage(by []string) *Linkage {
	return &Linkage{Type: LinkageReimbursed, ReimbursedBy: by}
}

// Is reports whether l is non-nil and of type t.
func (l *Linkage) Is(t LinkageType) bool {
	return l != nil && l.Type == t
}

// Check enforces the per-variant field rules.
func (l *Linkage) Check() error {
	switch l.Type {
	case LinkageInternal:
		if len(l.Reimburses) > 0 || len(l.ReimbursedBy) > 0 {
			return fmt.Errorf("%w: internal linkage cannot reference other transactions", ErrInvalidLinkage)
		}
	case LinkageReimbursement:
		if len(l.Reimburses) == 0 {
			return fmt.Errorf("%w: reimbursement must reference at least one transaction", ErrInvalidLinkage)
		}
		if len(l.ReimbursedBy) > 0 {
			return fmt.Errorf("%w: reimbursement cannot carry reimbursedBy", ErrInvalidLinkage)
		}
	case LinkageReimbursed:
		if len(l.ReimbursedBy) == 0 {
			return fmt.Errorf("%w: reimbursed linkage must reference at least one transaction", ErrInvalidLinkage)
		}
		if len(l.Reimburses) > 0 {
			return fmt.Errorf("%w: reimbursed linkage cannot carry reimburses", ErrInvalidLinkage)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidLinkage, l.Type)
	}
	return nil
}

func (l *Linkage) UnmarshalJSON(b []byte) error {
	type alias Linkage
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLinkage, err)
	}
	decoded := Linkage(a)
	if err := decoded.Check(); err != nil {
		return err
	}
	*l = decoded
	return nil
}

// PendingLinkage is the linkage of a row that has not been committed yet.
// Targets are either persisted ids or positions inside the same pending
// batch. It is turned into a Linkage only by the linkage resolver.
type PendingLinkage struct {
	Type                LinkageType `json:"type"`
	Reimburses          []string    `json:"reimburses,omitempty"`
	PendingBatchIndices []int       `json:"_pendingBatchIndices,omitempty"`
	AutoDetected        bool        `json:"autoDetected,omitempty"`
	DetectionReason     string      `json:"detectionReason,omitempty"`
}

func (p *PendingLinkage) HasTargets() bool {
	return len(p.Reimburses) > 0 || len(p.PendingBatchIndices) > 0
}

func (p *PendingLinkage) UnmarshalJSON(b []byte) error {
	type alias PendingLinkage
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLinkage, err)
	}
	switch a.Type {
	case LinkageInternal, LinkageReimbursement:
	case LinkageReimbursed:
		return fmt.Errorf("%w: reimbursed is derived and cannot be set on import", ErrInvalidLinkage)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidLinkage, a.Type)
	}
	*p = PendingLinkage(a)
	return nil
}
