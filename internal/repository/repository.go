package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
// 由 Store.Transaction 创建的实例绑定在同一事务连接上
type Repository struct {
	Book         BookRepository
	Student      StudentRepository
	Borrowing    BorrowingRepository
	Penalty      PenaltyRepository
	Audit        AuditRepository
	Notification NotificationRepository
	FeeCategory  FeeCategoryRepository
	// Savepoint 仅在事务内有效
	Savepoint SavepointManager
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Book:         NewBookRepo(db),
		Student:      NewStudentRepo(db),
		Borrowing:    NewBorrowingRepo(db),
		Penalty:      NewPenaltyRepo(db),
		Audit:        NewAuditRepo(db),
		Notification: NewNotificationRepo(db),
		FeeCategory:  NewFeeCategoryRepo(db),
		Savepoint:    &gormSavepoint{db: db},
	}
}

// SavepointManager 事务内保存点
type SavepointManager interface {
	SavePoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
}

// Store 事务边界：所有协调器通过它开启事务
type Store interface {
	// Transaction 在单个事务内执行 fn；fn 返回错误则整体回滚
	Transaction(ctx context.Context, fn func(tx *Repository) error) error
	// Reader 返回非事务的 Repository，仅用于只读查询
	Reader() *Repository
}

type gormStore struct {
	db          *gorm.DB
	lockTimeout time.Duration
	reader      *Repository
}

// NewStore 创建基于 GORM 的 Store
// lockTimeout > 0 时每个事务执行 SET LOCAL lock_timeout，超时转换为 ErrContention
func NewStore(db *gorm.DB, lockTimeout time.Duration) Store {
	return &gormStore{db: db, lockTimeout: lockTimeout, reader: NewRepository(db)}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 {
			// SET 不支持参数绑定，毫秒数为整数，可直接拼接
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(NewRepository(tx))
	})
	return translateError(err)
}

func (s *gormStore) Reader() *Repository {
	return s.reader
}

type gormSavepoint struct {
	db *gorm.DB
}

func (s *gormSavepoint) SavePoint(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).SavePoint(name).Error
}

func (s *gormSavepoint) RollbackTo(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).RollbackTo(name).Error
}
