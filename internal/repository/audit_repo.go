package repository

import (
	"context"

	"gorm.io/gorm"

	"library-lending/internal/model"
)

// AuditRepository 审计日志数据访问接口（只追加）
type AuditRepository interface {
	Create(ctx context.Context, entry *model.AuditEntry) error
	ListBySubject(ctx context.Context, table string, subjectID uint64) ([]model.AuditEntry, error)
}

type auditRepo struct {
	db *gorm.DB
}

// NewAuditRepo 创建 AuditRepository 实例
func NewAuditRepo(db *gorm.DB) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Create(ctx context.Context, entry *model.AuditEntry) error {
	return translateError(r.db.WithContext(ctx).Create(entry).Error)
}

func (r *auditRepo) ListBySubject(ctx context.Context, table string, subjectID uint64) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	err := r.db.WithContext(ctx).
		Where("subject_table = ? AND subject_id = ?", table, subjectID).
		Order("audit_id ASC").
		Find(&entries).Error
	return entries, err
}
