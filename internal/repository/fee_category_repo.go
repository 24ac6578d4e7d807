package repository

import (
	"context"

	"gorm.io/gorm"

	"library-lending/internal/model"
)

// FeeCategoryRepository 费用分类数据访问接口
type FeeCategoryRepository interface {
	GetByName(ctx context.Context, name string) (*model.FeeCategory, error)
	List(ctx context.Context) ([]model.FeeCategory, error)
}

type feeCategoryRepo struct {
	db *gorm.DB
}

// NewFeeCategoryRepo 创建 FeeCategoryRepository 实例
func NewFeeCategoryRepo(db *gorm.DB) FeeCategoryRepository {
	return &feeCategoryRepo{db: db}
}

func (r *feeCategoryRepo) GetByName(ctx context.Context, name string) (*model.FeeCategory, error) {
	var category model.FeeCategory
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *feeCategoryRepo) List(ctx context.Context) ([]model.FeeCategory, error) {
	var categories []model.FeeCategory
	err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	return categories, err
}
