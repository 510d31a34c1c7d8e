package repository

import (
	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/nimasrn/statement-ledger/pkg/pg"
)

type CategoryEntity struct {
	pg.Model
	UserID    string `gorm:"column:user_id;not null;uniqueIndex:idx_categories_user_name,priority:1"`
	Name      string `gorm:"column:name;not null;uniqueIndex:idx_categories_user_name,priority:2"`
	Color     string `gorm:"column:color;not null"`
	Icon      string `gorm:"column:icon"`
	IsDefault bool   `gorm:"column:is_default;not null;default:false"`
}

func (CategoryEntity) TableName() string {
	return "categories"
}

func toCategoryModel(e *CategoryEntity) *model.Category {
	if e == nil {
		return nil
	}
	return &model.Category{
		ID:    e.ID,
		Name:  e.Name,
		Color: e.Color,
		Icon:  e.Icon,
	}
}
