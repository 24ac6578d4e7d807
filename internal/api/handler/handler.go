package handler

import (
	"go.uber.org/zap"

	"library-lending/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Lending *LendingHandler
	Sweep   *SweepHandler
	Report  *ReportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, reports ReportQuerier, thresholdCents int64, logger *zap.Logger) *Handler {
	return &Handler{
		Lending: NewLendingHandler(svc.Borrow, svc.Return, svc.Penalty, logger),
		Sweep:   NewSweepHandler(svc.Suspension, svc.Notification, thresholdCents),
		Report:  NewReportHandler(reports),
	}
}
