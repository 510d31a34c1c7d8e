package repository

import (
	"context"
	"fmt"

	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/nimasrn/statement-ledger/pkg/pg"
	"gorm.io/gorm/clause"
)

type CategoryRepository struct {
	*pg.DB
}

func NewCategoryRepository(db *pg.DB) *CategoryRepository {
	return &CategoryRepository{
		db,
	}
}

// EnsureReserved creates any missing reserved category for userID and returns
// all of them keyed by name.
func (r *CategoryRepository) EnsureReserved(ctx context.Context, userID string) (map[string]*model.Category, error) {
	names := make([]string, len(model.ReservedCategories))
	rows := make([]*CategoryEntity, len(model.ReservedCategories))
	for i, c := range model.ReservedCategories {
		names[i] = c.Name
		rows[i] = &CategoryEntity{
			Model:     pg.Model{ID: pg.NewID()},
			UserID:    userID,
			Name:      c.Name,
			Color:     c.Color,
			Icon:      c.Icon,
			IsDefault: true,
		}
	}

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
			DoNothing: true,
		}).
		Create(rows).Error
	if err != nil {
		return nil, err
	}

	var found []*CategoryEntity
	err = r.Write(ctx).WithContext(ctx).
		Where("user_id = ? AND name IN ?", userID, names).
		Find(&found).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]*model.Category, len(found))
	for _, e := range found {
		out[e.Name] = toCategoryModel(e)
	}
	for _, name := range names {
		if out[name] == nil {
			return nil, fmt.Errorf("reserved category %q missing after upsert", name)
		}
	}
	return out, nil
}

// CountOwned returns how many of ids are categories owned by userID.
func (r *CategoryRepository) CountOwned(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&CategoryEntity{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Count(&n).Error
	return n, err
}

// Create stores a user-defined category.
func (r *CategoryRepository) Create(ctx context.Context, userID string, c *model.Category) error {
	if c.ID == "" {
		c.ID = pg.NewID()
	}
	return r.Write(ctx).WithContext(ctx).Create(&CategoryEntity{
		Model:  pg.Model{ID: c.ID},
		UserID: userID,
		Name:   c.Name,
		Color:  c.Color,
		Icon:   c.Icon,
	}).Error
}
