package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"library-lending/internal/model"
	"library-lending/internal/repository"
	"library-lending/pkg/clock"
	pkgerrors "library-lending/pkg/errors"
)

// SuspensionResult 停用扫描结果
type SuspensionResult struct {
	ThresholdCents      int64    `json:"threshold_cents"`
	SuspendedIDs        []uint64 `json:"suspended_ids"`
	AlreadySuspendedIDs []uint64 `json:"already_suspended_ids"`
}

// SuspensionService 停用扫描接口
type SuspensionService interface {
	// SuspendOverThreshold 停用未缴罚金严格大于阈值的学生，单事务执行，任一失败整体回滚
	SuspendOverThreshold(ctx context.Context, thresholdCents int64) (*SuspensionResult, error)
}

type suspensionService struct {
	store  repository.Store
	clock  clock.Clock
	logger *zap.Logger
}

// NewSuspensionService 创建 SuspensionService 实例
func NewSuspensionService(store repository.Store, clk clock.Clock, logger *zap.Logger) SuspensionService {
	return &suspensionService{store: store, clock: clk, logger: logger}
}

func (s *suspensionService) SuspendOverThreshold(ctx context.Context, thresholdCents int64) (*SuspensionResult, error) {
	if thresholdCents < 0 {
		return nil, pkgerrors.ErrInvalidThreshold
	}

	ctx, span := tracer.Start(ctx, "SuspensionService.SuspendOverThreshold",
		trace.WithAttributes(attribute.Int64("threshold_cents", thresholdCents)))
	defer span.End()

	var result *SuspensionResult
	err := s.store.Transaction(ctx, func(tx *repository.Repository) error {
		totals, err := tx.Penalty.ListUnpaidTotalsAbove(ctx, thresholdCents)
		if err != nil {
			return err
		}

		res := &SuspensionResult{
			ThresholdCents:      thresholdCents,
			SuspendedIDs:        []uint64{},
			AlreadySuspendedIDs: []uint64{},
		}
		now := s.clock.Now()
		for _, total := range totals {
			student, err := tx.Student.GetByIDForUpdate(ctx, total.StudentID)
			if err != nil {
				return notFoundAs(err, fmt.Errorf("学生不存在 (student_id=%d): %w", total.StudentID, pkgerrors.ErrNotFound))
			}
			if student.MembershipStatus == model.MembershipSuspended {
				res.AlreadySuspendedIDs = append(res.AlreadySuspendedIDs, student.StudentID)
				continue
			}
			if err := tx.Student.UpdateMembershipStatus(ctx, student.StudentID, model.MembershipSuspended, now); err != nil {
				return err
			}
			res.SuspendedIDs = append(res.SuspendedIDs, student.StudentID)
		}
		result = res
		return nil
	})
	if err != nil {
		s.logger.Error("停用扫描失败，已整体回滚", zap.Int64("threshold_cents", thresholdCents), zap.Error(err))
		span.RecordError(err)
		return nil, err
	}

	if len(result.AlreadySuspendedIDs) > 0 {
		s.logger.Info("学生已处于停用状态", zap.Uint64s("student_ids", result.AlreadySuspendedIDs))
	}
	s.logger.Info("停用扫描完成",
		zap.Int64("threshold_cents", thresholdCents),
		zap.Uint64s("suspended_ids", result.SuspendedIDs),
	)
	return result, nil
}
