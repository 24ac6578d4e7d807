package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library-lending/internal/model"
)

// PenaltyRepository 罚金数据访问接口
type PenaltyRepository interface {
	GetByBorrowingID(ctx context.Context, borrowingID uint64) (*model.Penalty, error)
	// CreateIfAbsent 按 borrowing_id 幂等插入，已存在时返回 false
	CreateIfAbsent(ctx context.Context, penalty *model.Penalty) (bool, error)
	SumUnpaidByStudent(ctx context.Context, studentID uint64) (int64, error)
	// ListUnpaidTotalsAbove 未缴总额严格大于阈值的学生，按 student_id 升序
	ListUnpaidTotalsAbove(ctx context.Context, thresholdCents int64) ([]model.StudentPenaltyTotal, error)
}

type penaltyRepo struct {
	db *gorm.DB
}

// NewPenaltyRepo 创建 PenaltyRepository 实例
func NewPenaltyRepo(db *gorm.DB) PenaltyRepository {
	return &penaltyRepo{db: db}
}

func (r *penaltyRepo) GetByBorrowingID(ctx context.Context, borrowingID uint64) (*model.Penalty, error) {
	var penalty model.Penalty
	err := r.db.WithContext(ctx).
		Where("borrowing_id = ?", borrowingID).
		First(&penalty).Error
	if err != nil {
		return nil, err
	}
	return &penalty, nil
}

func (r *penaltyRepo) CreateIfAbsent(ctx context.Context, penalty *model.Penalty) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "borrowing_id"}},
			DoNothing: true,
		}).
		Create(penalty)
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *penaltyRepo) SumUnpaidByStudent(ctx context.Context, studentID uint64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Penalty{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("student_id = ? AND paid_status = ?", studentID, model.PenaltyUnpaid).
		Scan(&total).Error
	return total, err
}

func (r *penaltyRepo) ListUnpaidTotalsAbove(ctx context.Context, thresholdCents int64) ([]model.StudentPenaltyTotal, error) {
	var totals []model.StudentPenaltyTotal
	err := r.db.WithContext(ctx).
		Model(&model.Penalty{}).
		Select("student_id, SUM(amount_cents) AS unpaid_cents").
		Where("paid_status = ?", model.PenaltyUnpaid).
		Group("student_id").
		Having("SUM(amount_cents) > ?", thresholdCents).
		Order("student_id ASC").
		Scan(&totals).Error
	return totals, err
}
