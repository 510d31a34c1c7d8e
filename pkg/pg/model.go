package pg

import (
	"time"

	"github.com/google/uuid"
)

// Model is embedded by every entity. IDs are generated in the application so
// callers know them before the insert runs.
type Model struct {
	ID        string    `gorm:"primaryKey;type:text;column:id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func NewID() string {
	return uuid.NewString()
}
