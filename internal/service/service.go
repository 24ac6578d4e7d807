package service

import (
	"errors"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"library-lending/config"
	"library-lending/internal/repository"
	"library-lending/pkg/clock"
)

var tracer = otel.Tracer("library-lending/internal/service")

// Service 所有 Service 的聚合入口
type Service struct {
	Borrow       BorrowService
	Return       ReturnService
	Penalty      PenaltyService
	Suspension   SuspensionService
	Notification NotificationService
}

// NewService 创建 Service 聚合
// publisher 为 nil 时通知只落库不投递
func NewService(
	cfg *config.LendingConfig,
	store repository.Store,
	clk clock.Clock,
	publisher NoticePublisher,
	logger *zap.Logger,
) *Service {
	audit := NewAuditRecorder(clk)
	gate := NewValidationGate(clk, cfg.GraceDays, cfg.MaxOpenLoans)

	return &Service{
		Borrow:       NewBorrowService(store, gate, audit, clk, logger),
		Return:       NewReturnService(store, audit, clk, cfg.GraceDays, logger),
		Penalty:      NewPenaltyService(store, clk, cfg.GraceDays, logger),
		Suspension:   NewSuspensionService(store, clk, logger),
		Notification: NewNotificationService(store, clk, cfg.GraceDays, publisher, logger),
	}
}

// notFoundAs 把 gorm.ErrRecordNotFound 替换为领域错误
func notFoundAs(err error, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}
