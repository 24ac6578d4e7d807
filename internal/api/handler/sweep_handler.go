package handler

import (
	"github.com/gin-gonic/gin"

	"library-lending/internal/dto"
	"library-lending/internal/service"
	"library-lending/pkg/response"
)

// SweepHandler 手动触发扫描任务
type SweepHandler struct {
	suspensionSvc   service.SuspensionService
	notificationSvc service.NotificationService
	thresholdCents  int64
}

// NewSweepHandler 创建 SweepHandler，thresholdCents 为请求未指定时的默认阈值
func NewSweepHandler(suspensionSvc service.SuspensionService, notificationSvc service.NotificationService, thresholdCents int64) *SweepHandler {
	return &SweepHandler{suspensionSvc: suspensionSvc, notificationSvc: notificationSvc, thresholdCents: thresholdCents}
}

// Suspension 停用未缴罚金超过阈值的学生
// POST /api/v1/sweeps/suspension
func (h *SweepHandler) Suspension(c *gin.Context) {
	var req dto.SuspensionSweepRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, response.CodeInvalidParam, "参数校验失败")
			return
		}
	}

	threshold := h.thresholdCents
	if req.ThresholdCents != nil {
		threshold = *req.ThresholdCents
	}

	result, err := h.suspensionSvc.SuspendOverThreshold(c.Request.Context(), threshold)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, result)
}

// Notifications 发送当天逾期通知
// POST /api/v1/sweeps/notifications
func (h *SweepHandler) Notifications(c *gin.Context) {
	result, err := h.notificationSvc.SendOverdueNotifications(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, result)
}
