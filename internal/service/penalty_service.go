package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"library-lending/internal/lending"
	"library-lending/internal/model"
	"library-lending/internal/repository"
	"library-lending/pkg/clock"
	pkgerrors "library-lending/pkg/errors"
)

// PenaltyService 罚金结算接口
type PenaltyService interface {
	// SettlePenalty 结算一条借阅记录的逾期罚金，重复调用返回已记录金额（分）
	SettlePenalty(ctx context.Context, borrowingID uint64) (int64, error)
}

// penaltyEngine 在调用方事务内计算并幂等写入罚金
// 调用前借阅记录必须已被 FOR UPDATE 锁定
type penaltyEngine struct {
	clock     clock.Clock
	graceDays int
	logger    *zap.Logger
}

func newPenaltyEngine(clk clock.Clock, graceDays int, logger *zap.Logger) *penaltyEngine {
	return &penaltyEngine{clock: clk, graceDays: graceDays, logger: logger}
}

// settle 以 reference 为参考时刻计算逾期费用；逾期 0 天不落库
func (e *penaltyEngine) settle(ctx context.Context, tx *repository.Repository, rec *model.BorrowingRecord, reference time.Time) (int64, error) {
	rate, err := e.feeRate(ctx, tx, rec.BookID)
	if err != nil {
		return 0, err
	}

	existing, err := tx.Penalty.GetByBorrowingID(ctx, rec.BorrowingID)
	if err == nil {
		return existing.AmountCents, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	days, err := lending.OverdueDays(rec.BorrowedAt, reference, e.graceDays)
	if err != nil {
		return 0, err
	}
	if days == 0 {
		return 0, nil
	}

	penalty := &model.Penalty{
		StudentID:   rec.StudentID,
		BorrowingID: rec.BorrowingID,
		AmountCents: lending.PenaltyCents(days, rate),
		Reason:      fmt.Sprintf("借阅记录 #%d 逾期 %d 天", rec.BorrowingID, days),
		PaidStatus:  model.PenaltyUnpaid,
	}
	created, err := tx.Penalty.CreateIfAbsent(ctx, penalty)
	if err != nil {
		return 0, err
	}
	if !created {
		// 并发结算已先写入
		existing, err := tx.Penalty.GetByBorrowingID(ctx, rec.BorrowingID)
		if err != nil {
			return 0, err
		}
		return existing.AmountCents, nil
	}

	e.logger.Info("记录逾期罚金",
		zap.Uint64("borrowing_id", rec.BorrowingID),
		zap.Uint64("student_id", rec.StudentID),
		zap.Int("overdue_days", days),
		zap.Int64("amount_cents", penalty.AmountCents),
	)
	return penalty.AmountCents, nil
}

func (e *penaltyEngine) feeRate(ctx context.Context, tx *repository.Repository, bookID uint64) (int64, error) {
	book, err := tx.Book.GetByID(ctx, bookID)
	if err != nil {
		return 0, notFoundAs(err, fmt.Errorf("图书不存在 (book_id=%d): %w", bookID, pkgerrors.ErrNotFound))
	}
	if book.FeeCategory != nil {
		return book.FeeCategory.FeePerDayCents, nil
	}
	category, err := tx.FeeCategory.GetByName(ctx, book.Category)
	if err != nil {
		return 0, notFoundAs(err, fmt.Errorf("费用分类 %q 不存在 (book_id=%d): %w", book.Category, bookID, pkgerrors.ErrNotFound))
	}
	return category.FeePerDayCents, nil
}

type penaltyService struct {
	store  repository.Store
	engine *penaltyEngine
	logger *zap.Logger
}

// NewPenaltyService 创建 PenaltyService 实例
func NewPenaltyService(store repository.Store, clk clock.Clock, graceDays int, logger *zap.Logger) PenaltyService {
	return &penaltyService{store: store, engine: newPenaltyEngine(clk, graceDays, logger), logger: logger}
}

func (s *penaltyService) SettlePenalty(ctx context.Context, borrowingID uint64) (int64, error) {
	ctx, span := tracer.Start(ctx, "PenaltyService.SettlePenalty",
		trace.WithAttributes(attribute.Int64("borrowing_id", int64(borrowingID))))
	defer span.End()

	var amount int64
	err := s.store.Transaction(ctx, func(tx *repository.Repository) error {
		rec, err := tx.Borrowing.GetByIDForUpdate(ctx, borrowingID)
		if err != nil {
			return notFoundAs(err, fmt.Errorf("%w (borrowing_id=%d)", pkgerrors.ErrRecordNotFound, borrowingID))
		}
		reference := lending.ReferenceInstant(rec.ReturnedAt, s.engine.clock.Now())
		amount, err = s.engine.settle(ctx, tx, rec, reference)
		return err
	})
	if err != nil {
		if !errors.Is(err, pkgerrors.ErrNotFound) {
			s.logger.Error("结算罚金失败", zap.Uint64("borrowing_id", borrowingID), zap.Error(err))
			span.RecordError(err)
		}
		return 0, err
	}
	return amount, nil
}
