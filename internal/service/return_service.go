package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"library-lending/internal/model"
	"library-lending/internal/repository"
	"library-lending/pkg/clock"
	pkgerrors "library-lending/pkg/errors"
)

const returnBatchSavepoint = "before_return_batch"

// ReturnResult 批量归还结果
type ReturnResult struct {
	ReturnedIDs   []uint64 `json:"returned_ids"`
	ReturnedCount int      `json:"returned_count"`
	// SkippedIDs 此前已归还而被跳过的记录
	SkippedIDs []uint64 `json:"skipped_ids"`
	// UnpaidCents 归还前学生的未缴罚金合计，仅作提示
	UnpaidCents int64 `json:"unpaid_cents"`
}

// ReturnService 批量归还接口
type ReturnService interface {
	// ReturnBooks 全部成功才提交；任一项失败则整批回滚并返回 *errors.BatchError
	ReturnBooks(ctx context.Context, studentID uint64, borrowingIDs []uint64) (*ReturnResult, error)
}

type returnService struct {
	store  repository.Store
	engine *penaltyEngine
	audit  *AuditRecorder
	clock  clock.Clock
	logger *zap.Logger
}

// NewReturnService 创建 ReturnService 实例
func NewReturnService(store repository.Store, audit *AuditRecorder, clk clock.Clock, graceDays int, logger *zap.Logger) ReturnService {
	return &returnService{
		store:  store,
		engine: newPenaltyEngine(clk, graceDays, logger),
		audit:  audit,
		clock:  clk,
		logger: logger,
	}
}

func (s *returnService) ReturnBooks(ctx context.Context, studentID uint64, borrowingIDs []uint64) (*ReturnResult, error) {
	ctx, span := tracer.Start(ctx, "ReturnService.ReturnBooks", trace.WithAttributes(
		attribute.Int64("student_id", int64(studentID)),
		attribute.Int("batch_size", len(borrowingIDs)),
	))
	defer span.End()

	var result *ReturnResult
	err := s.store.Transaction(ctx, func(tx *repository.Repository) error {
		res := &ReturnResult{ReturnedIDs: []uint64{}, SkippedIDs: []uint64{}}

		unpaid, err := tx.Penalty.SumUnpaidByStudent(ctx, studentID)
		if err != nil {
			return err
		}
		res.UnpaidCents = unpaid
		if unpaid > 0 {
			s.logger.Info("学生存在未缴罚金", zap.Uint64("student_id", studentID), zap.Int64("unpaid_cents", unpaid))
		}

		if err := tx.Savepoint.SavePoint(ctx, returnBatchSavepoint); err != nil {
			return err
		}

		for i, id := range borrowingIDs {
			returned, err := s.returnOne(ctx, tx, studentID, id)
			if err != nil {
				if rbErr := tx.Savepoint.RollbackTo(ctx, returnBatchSavepoint); rbErr != nil {
					s.logger.Error("回滚到保存点失败", zap.String("savepoint", returnBatchSavepoint), zap.Error(rbErr))
				}
				return &pkgerrors.BatchError{Index: i, BorrowingID: id, Cause: err}
			}
			if returned {
				res.ReturnedIDs = append(res.ReturnedIDs, id)
			} else {
				res.SkippedIDs = append(res.SkippedIDs, id)
			}
		}

		res.ReturnedCount = len(res.ReturnedIDs)
		result = res
		return nil
	})
	if err != nil {
		s.logger.Warn("批量归还失败，已整体回滚",
			zap.Uint64("student_id", studentID),
			zap.Uint64s("borrowing_ids", borrowingIDs),
			zap.Error(err),
		)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.logger.Info("批量归还完成",
		zap.Uint64("student_id", studentID),
		zap.Int("returned_count", result.ReturnedCount),
		zap.Int("skipped_count", len(result.SkippedIDs)),
	)
	return result, nil
}

// returnOne 归还单条记录；已归还的记录返回 (false, nil)
func (s *returnService) returnOne(ctx context.Context, tx *repository.Repository, studentID, borrowingID uint64) (bool, error) {
	rec, err := tx.Borrowing.GetByIDForUpdate(ctx, borrowingID)
	if err != nil {
		return false, notFoundAs(err, fmt.Errorf("%w (borrowing_id=%d)", pkgerrors.ErrRecordNotFound, borrowingID))
	}
	if rec.StudentID != studentID {
		return false, fmt.Errorf("%w (borrowing_id=%d, student_id=%d)", pkgerrors.ErrOwnershipMismatch, borrowingID, studentID)
	}
	if rec.Status == model.BorrowStatusReturned {
		return false, nil
	}

	before := snapshotOf(rec)
	now := s.clock.Now()

	if _, err := s.engine.settle(ctx, tx, rec, now); err != nil {
		return false, err
	}
	if err := tx.Borrowing.UpdateStatus(ctx, borrowingID, model.BorrowStatusReturned, &now, now); err != nil {
		return false, err
	}
	if err := tx.Book.UpdateAvailability(ctx, rec.BookID, model.BookAvailable, now); err != nil {
		return false, err
	}

	after := before
	after.Status = model.BorrowStatusReturned
	after.ReturnedAt = &now
	if err := s.audit.Record(ctx, tx, tableBorrowingRecords, borrowingID, model.AuditUpdate, before, after); err != nil {
		return false, err
	}
	return true, nil
}
