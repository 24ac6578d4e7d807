package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"library-lending/internal/model"
	"library-lending/internal/repository"
	"library-lending/pkg/clock"
	pkgerrors "library-lending/pkg/errors"
)

// BorrowService 借阅业务接口
type BorrowService interface {
	// Borrow 校验并创建借阅记录，同时把图书置为 Borrowed
	Borrow(ctx context.Context, studentID, bookID uint64) (*model.BorrowingRecord, error)
	// DeleteBorrowingRecord 管理员删除借阅记录，写入 DELETE 审计并同步图书可借状态
	DeleteBorrowingRecord(ctx context.Context, borrowingID uint64) error
	// CurrentlyBorrowedCount 当前未归还记录总数
	CurrentlyBorrowedCount(ctx context.Context) (int64, error)
}

type borrowService struct {
	store  repository.Store
	gate   *ValidationGate
	audit  *AuditRecorder
	clock  clock.Clock
	logger *zap.Logger
}

// NewBorrowService 创建 BorrowService 实例
func NewBorrowService(store repository.Store, gate *ValidationGate, audit *AuditRecorder, clk clock.Clock, logger *zap.Logger) BorrowService {
	return &borrowService{store: store, gate: gate, audit: audit, clock: clk, logger: logger}
}

// ────────────────────── Borrow ──────────────────────

func (s *borrowService) Borrow(ctx context.Context, studentID, bookID uint64) (*model.BorrowingRecord, error) {
	ctx, span := tracer.Start(ctx, "BorrowService.Borrow", trace.WithAttributes(
		attribute.Int64("student_id", int64(studentID)),
		attribute.Int64("book_id", int64(bookID)),
	))
	defer span.End()

	var record *model.BorrowingRecord
	err := s.store.Transaction(ctx, func(tx *repository.Repository) error {
		book, err := s.gate.Validate(ctx, tx, studentID, bookID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		rec := &model.BorrowingRecord{
			BookID:     book.BookID,
			StudentID:  studentID,
			BorrowedAt: now,
			Status:     model.BorrowStatusBorrowed,
		}
		if err := tx.Borrowing.Create(ctx, rec); err != nil {
			// 唯一索引兜底：该书已有未归还记录
			if errors.Is(err, pkgerrors.ErrDuplicate) {
				return pkgerrors.NewValidationError(pkgerrors.KindBookUnavailable, studentID, bookID)
			}
			return err
		}
		if err := tx.Book.UpdateAvailability(ctx, book.BookID, model.BookBorrowed, now); err != nil {
			return err
		}
		record = rec
		return nil
	})
	if err != nil {
		var ve *pkgerrors.ValidationError
		switch {
		case errors.As(err, &ve):
			s.logger.Info("借阅被拒绝",
				zap.String("rule", string(ve.Kind)),
				zap.Uint64("student_id", studentID),
				zap.Uint64("book_id", bookID),
			)
		case errors.Is(err, pkgerrors.ErrNotFound), errors.Is(err, pkgerrors.ErrContention):
			s.logger.Warn("借阅失败", zap.Uint64("student_id", studentID), zap.Uint64("book_id", bookID), zap.Error(err))
		default:
			s.logger.Error("借阅失败", zap.Uint64("student_id", studentID), zap.Uint64("book_id", bookID), zap.Error(err))
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int64("borrowing_id", int64(record.BorrowingID)))
	return record, nil
}

// ────────────────────── DeleteBorrowingRecord ──────────────────────

func (s *borrowService) DeleteBorrowingRecord(ctx context.Context, borrowingID uint64) error {
	err := s.store.Transaction(ctx, func(tx *repository.Repository) error {
		rec, err := tx.Borrowing.GetByIDForUpdate(ctx, borrowingID)
		if err != nil {
			return notFoundAs(err, fmt.Errorf("%w (borrowing_id=%d)", pkgerrors.ErrRecordNotFound, borrowingID))
		}

		_, err = tx.Penalty.GetByBorrowingID(ctx, borrowingID)
		if err == nil {
			return fmt.Errorf("%w (borrowing_id=%d)", pkgerrors.ErrRecordHasPenalty, borrowingID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Borrowing.Delete(ctx, borrowingID); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, tableBorrowingRecords, borrowingID, model.AuditDelete, snapshotOf(rec), nil); err != nil {
			return err
		}

		// 可借状态按剩余未归还记录重新计算
		stillOpen, err := tx.Borrowing.ExistsOpenForBook(ctx, rec.BookID)
		if err != nil {
			return err
		}
		availability := model.BookAvailable
		if stillOpen {
			availability = model.BookBorrowed
		}
		return tx.Book.UpdateAvailability(ctx, rec.BookID, availability, s.clock.Now())
	})
	if err != nil {
		s.logger.Warn("删除借阅记录失败", zap.Uint64("borrowing_id", borrowingID), zap.Error(err))
		return err
	}

	s.logger.Info("借阅记录已删除", zap.Uint64("borrowing_id", borrowingID))
	return nil
}

// ────────────────────── CurrentlyBorrowedCount ──────────────────────

func (s *borrowService) CurrentlyBorrowedCount(ctx context.Context) (int64, error) {
	count, err := s.store.Reader().Borrowing.CountOpen(ctx)
	if err != nil {
		s.logger.Error("统计在借数量失败", zap.Error(err))
		return 0, err
	}
	return count, nil
}
