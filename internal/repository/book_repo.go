package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library-lending/internal/model"
)

// BookRepository 图书数据访问接口
type BookRepository interface {
	Create(ctx context.Context, book *model.Book) error
	GetByID(ctx context.Context, id uint64) (*model.Book, error)
	// GetByIDForUpdate 使用 SELECT ... FOR UPDATE 锁定图书行，必须在事务内调用
	GetByIDForUpdate(ctx context.Context, id uint64) (*model.Book, error)
	UpdateAvailability(ctx context.Context, id uint64, availability string, at time.Time) error
}

// bookRepo BookRepository 的 GORM 实现
type bookRepo struct {
	db *gorm.DB
}

// NewBookRepo 创建 BookRepository 实例
func NewBookRepo(db *gorm.DB) BookRepository {
	return &bookRepo{db: db}
}

func (r *bookRepo) Create(ctx context.Context, book *model.Book) error {
	return translateError(r.db.WithContext(ctx).Create(book).Error)
}

func (r *bookRepo) GetByID(ctx context.Context, id uint64) (*model.Book, error) {
	var book model.Book
	err := r.db.WithContext(ctx).
		Preload("FeeCategory").
		Where("book_id = ?", id).
		First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Book, error) {
	var book model.Book
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("book_id = ?", id).
		First(&book).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &book, nil
}

func (r *bookRepo) UpdateAvailability(ctx context.Context, id uint64, availability string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Book{}).
		Where("book_id = ?", id).
		Updates(map[string]interface{}{
			"availability": availability,
			"updated_at":   at,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
