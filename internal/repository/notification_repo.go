package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library-lending/internal/model"
)

// NotificationRepository 逾期通知记录数据访问接口
type NotificationRepository interface {
	// ExistsForDay 同一 (学生, 图书) 在 day 当天是否已通知
	ExistsForDay(ctx context.Context, studentID, bookID uint64, day time.Time) (bool, error)
	// CreateIfAbsent 按 (student_id, book_id, notice_date) 幂等插入
	CreateIfAbsent(ctx context.Context, entry *model.NotificationEntry) (bool, error)
}

type notificationRepo struct {
	db *gorm.DB
}

// NewNotificationRepo 创建 NotificationRepository 实例
func NewNotificationRepo(db *gorm.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) ExistsForDay(ctx context.Context, studentID, bookID uint64, day time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.NotificationEntry{}).
		Where("student_id = ? AND book_id = ? AND notice_date = ?", studentID, bookID, day.Format("2006-01-02")).
		Count(&count).Error
	return count > 0, err
}

func (r *notificationRepo) CreateIfAbsent(ctx context.Context, entry *model.NotificationEntry) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "book_id"}, {Name: "notice_date"}},
			DoNothing: true,
		}).
		Create(entry)
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected > 0, nil
}
