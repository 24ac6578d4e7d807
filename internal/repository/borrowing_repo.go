package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library-lending/internal/model"
)

// BorrowingRepository 借阅记录数据访问接口
type BorrowingRepository interface {
	Create(ctx context.Context, record *model.BorrowingRecord) error
	GetByID(ctx context.Context, id uint64) (*model.BorrowingRecord, error)
	// GetByIDForUpdate 锁定单条借阅记录，防止同一记录的归还/结算交错执行
	GetByIDForUpdate(ctx context.Context, id uint64) (*model.BorrowingRecord, error)
	// ListOpenByStudentForUpdate 锁定并返回学生全部未归还记录
	ListOpenByStudentForUpdate(ctx context.Context, studentID uint64) ([]model.BorrowingRecord, error)
	// ExistsOpenForBook 图书是否存在未归还记录
	ExistsOpenForBook(ctx context.Context, bookID uint64) (bool, error)
	// ListPastGrace 借出早于 cutoff 且（未归还 或 归还时已超过宽限期）的记录
	ListPastGrace(ctx context.Context, cutoff time.Time, graceDays int) ([]model.BorrowingRecord, error)
	CountOpen(ctx context.Context) (int64, error)
	UpdateStatus(ctx context.Context, id uint64, status string, returnedAt *time.Time, at time.Time) error
	Delete(ctx context.Context, id uint64) error
}

type borrowingRepo struct {
	db *gorm.DB
}

// NewBorrowingRepo 创建 BorrowingRepository 实例
func NewBorrowingRepo(db *gorm.DB) BorrowingRepository {
	return &borrowingRepo{db: db}
}

func (r *borrowingRepo) Create(ctx context.Context, record *model.BorrowingRecord) error {
	return translateError(r.db.WithContext(ctx).Create(record).Error)
}

func (r *borrowingRepo) GetByID(ctx context.Context, id uint64) (*model.BorrowingRecord, error) {
	var record model.BorrowingRecord
	err := r.db.WithContext(ctx).
		Where("borrowing_id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *borrowingRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.BorrowingRecord, error) {
	var record model.BorrowingRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("borrowing_id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &record, nil
}

func (r *borrowingRepo) ListOpenByStudentForUpdate(ctx context.Context, studentID uint64) ([]model.BorrowingRecord, error) {
	var records []model.BorrowingRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ? AND status <> ?", studentID, model.BorrowStatusReturned).
		Order("borrowed_at ASC").
		Find(&records).Error
	return records, translateError(err)
}

func (r *borrowingRepo) ExistsOpenForBook(ctx context.Context, bookID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.BorrowingRecord{}).
		Where("book_id = ? AND status <> ?", bookID, model.BorrowStatusReturned).
		Count(&count).Error
	return count > 0, err
}

func (r *borrowingRepo) ListPastGrace(ctx context.Context, cutoff time.Time, graceDays int) ([]model.BorrowingRecord, error) {
	var records []model.BorrowingRecord
	err := r.db.WithContext(ctx).
		Where("borrowed_at < ?", cutoff).
		Where("status <> ? OR returned_at > borrowed_at + make_interval(days => ?)", model.BorrowStatusReturned, graceDays).
		Order("borrowing_id ASC").
		Find(&records).Error
	return records, err
}

func (r *borrowingRepo) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.BorrowingRecord{}).
		Where("status <> ?", model.BorrowStatusReturned).
		Count(&count).Error
	return count, err
}

func (r *borrowingRepo) UpdateStatus(ctx context.Context, id uint64, status string, returnedAt *time.Time, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.BorrowingRecord{}).
		Where("borrowing_id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"returned_at": returnedAt,
			"updated_at":  at,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *borrowingRepo) Delete(ctx context.Context, id uint64) error {
	result := r.db.WithContext(ctx).
		Where("borrowing_id = ?", id).
		Delete(&model.BorrowingRecord{})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
