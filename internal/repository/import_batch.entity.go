package repository

import (
	"time"

	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/nimasrn/statement-ledger/pkg/pg"
)

type ImportBatchEntity struct {
	pg.Model
	UserID      string    `gorm:"column:user_id;not null;index"`
	Filename    string    `gorm:"column:filename;not null"`
	FileType    string    `gorm:"column:file_type;not null"`
	ParserID    string    `gorm:"column:parser_id;not null"`
	Status      string    `gorm:"column:status;not null"`
	CommittedAt time.Time `gorm:"column:committed_at;not null"`
	ExpiresAt   time.Time `gorm:"column:expires_at;not null;index"`
}

func (ImportBatchEntity) TableName() string {
	return "import_batches"
}

func toImportBatchEntity(m *model.ImportBatch) *ImportBatchEntity {
	if m == nil {
		return nil
	}
	return &ImportBatchEntity{
		Model:       pg.Model{ID: m.ID},
		UserID:      m.UserID,
		Filename:    m.Filename,
		FileType:    m.FileType,
		ParserID:    m.ParserID,
		Status:      string(m.Status),
		CommittedAt: m.CommittedAt,
		ExpiresAt:   m.ExpiresAt,
	}
}

func toImportBatchModel(e *ImportBatchEntity) *model.ImportBatch {
	if e == nil {
		return nil
	}
	return &model.ImportBatch{
		ID:          e.ID,
		UserID:      e.UserID,
		Filename:    e.Filename,
		FileType:    e.FileType,
		ParserID:    e.ParserID,
		Status:      model.ImportBatchStatus(e.Status),
		CommittedAt: e.CommittedAt,
		ExpiresAt:   e.ExpiresAt,
	}
}

// Entities lists every table owned by the ledger, in migration order.
func Entities() []any {
	return []any{&CategoryEntity{}, &ImportBatchEntity{}, &TransactionEntity{}}
}
