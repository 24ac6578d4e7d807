package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"library-lending/internal/report"
	"library-lending/pkg/response"
)

// ReportQuerier 只读报表（report.Reporter 实现）
type ReportQuerier interface {
	StudentHistory(ctx context.Context, studentID uint64) (*report.StudentHistory, error)
	BookReport(ctx context.Context) ([]report.BookStatus, error)
}

// ReportHandler 报表模块 HTTP 处理器
type ReportHandler struct {
	reports ReportQuerier
}

// NewReportHandler 创建 ReportHandler
func NewReportHandler(reports ReportQuerier) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// StudentHistory 学生借阅历史
// GET /api/v1/students/:id/history
func (h *ReportHandler) StudentHistory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	history, err := h.reports.StudentHistory(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, history)
}

// BookReport 全部图书的可借状态
// GET /api/v1/reports/books
func (h *ReportHandler) BookReport(c *gin.Context) {
	books, err := h.reports.BookReport(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, gin.H{"list": books})
}
