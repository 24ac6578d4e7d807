package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"library-lending/internal/lending"
	"library-lending/internal/model"
	"library-lending/internal/repository"
	"library-lending/pkg/clock"
)

// RoutingKeyOverdue 逾期通知的 routing key
const RoutingKeyOverdue = "lending.overdue"

// NoticePublisher 逾期通知投递（pkg/mq.Publisher 实现）
type NoticePublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// OverdueNotice 投递到消息队列的通知内容
type OverdueNotice struct {
	NotificationID uint64    `json:"notification_id"`
	StudentID      uint64    `json:"student_id"`
	BookID         uint64    `json:"book_id"`
	BorrowingID    uint64    `json:"borrowing_id"`
	OverdueDays    int       `json:"overdue_days"`
	NoticeDate     string    `json:"notice_date"`
	SentAt         time.Time `json:"sent_at"`
}

// NotificationResult 通知扫描结果
type NotificationResult struct {
	NotifiedCount int             `json:"notified_count"`
	SkippedCount  int             `json:"skipped_count"` // 当天已通知
	Notices       []OverdueNotice `json:"notices"`
	PublishFailed int             `json:"publish_failed"`
}

// NotificationService 逾期通知扫描接口
type NotificationService interface {
	// SendOverdueNotifications 为逾期未还或逾期归还的记录写入当天通知，每个 (学生, 图书) 每天至多一条
	SendOverdueNotifications(ctx context.Context) (*NotificationResult, error)
}

type notificationService struct {
	store     repository.Store
	clock     clock.Clock
	graceDays int
	publisher NoticePublisher
	logger    *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(store repository.Store, clk clock.Clock, graceDays int, publisher NoticePublisher, logger *zap.Logger) NotificationService {
	return &notificationService{store: store, clock: clk, graceDays: graceDays, publisher: publisher, logger: logger}
}

func (s *notificationService) SendOverdueNotifications(ctx context.Context) (*NotificationResult, error) {
	ctx, span := tracer.Start(ctx, "NotificationService.SendOverdueNotifications")
	defer span.End()

	now := s.clock.Now()
	today := lending.DayOf(now)

	var result *NotificationResult
	err := s.store.Transaction(ctx, func(tx *repository.Repository) error {
		candidates, err := tx.Borrowing.ListPastGrace(ctx, lending.GraceCutoff(now, s.graceDays), s.graceDays)
		if err != nil {
			return err
		}

		res := &NotificationResult{Notices: []OverdueNotice{}}
		for i := range candidates {
			rec := &candidates[i]
			days, err := lending.OverdueDays(rec.BorrowedAt, lending.ReferenceInstant(rec.ReturnedAt, now), s.graceDays)
			if err != nil {
				return err
			}
			if days == 0 {
				continue
			}

			exists, err := tx.Notification.ExistsForDay(ctx, rec.StudentID, rec.BookID, today)
			if err != nil {
				return err
			}
			if exists {
				res.SkippedCount++
				continue
			}

			entry := &model.NotificationEntry{
				StudentID:   rec.StudentID,
				BookID:      rec.BookID,
				BorrowingID: rec.BorrowingID,
				OverdueDays: days,
				NoticeDate:  today,
				SentAt:      now,
			}
			created, err := tx.Notification.CreateIfAbsent(ctx, entry)
			if err != nil {
				return err
			}
			if !created {
				res.SkippedCount++
				continue
			}
			res.Notices = append(res.Notices, OverdueNotice{
				NotificationID: entry.NotificationID,
				StudentID:      entry.StudentID,
				BookID:         entry.BookID,
				BorrowingID:    entry.BorrowingID,
				OverdueDays:    entry.OverdueDays,
				NoticeDate:     today.Format("2006-01-02"),
				SentAt:         now,
			})
		}
		res.NotifiedCount = len(res.Notices)
		result = res
		return nil
	})
	if err != nil {
		s.logger.Error("通知扫描失败，已整体回滚", zap.Error(err))
		span.RecordError(err)
		return nil, err
	}

	// 提交后投递；投递失败不影响已落库的通知
	if s.publisher != nil {
		for _, notice := range result.Notices {
			if err := s.publisher.PublishJSON(ctx, RoutingKeyOverdue, notice); err != nil {
				result.PublishFailed++
				s.logger.Warn("逾期通知投递失败",
					zap.Uint64("notification_id", notice.NotificationID),
					zap.Uint64("student_id", notice.StudentID),
					zap.Error(err),
				)
			}
		}
	}

	span.SetAttributes(attribute.Int("notified_count", result.NotifiedCount))
	s.logger.Info("通知扫描完成",
		zap.Int("notified_count", result.NotifiedCount),
		zap.Int("skipped_count", result.SkippedCount),
	)
	return result, nil
}
