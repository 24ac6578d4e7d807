package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"library-lending/internal/dto"
	"library-lending/internal/model"
	"library-lending/internal/service"
	"library-lending/pkg/response"
	"library-lending/pkg/retry"
)

// LendingHandler 借阅模块 HTTP 处理器
type LendingHandler struct {
	borrowSvc  service.BorrowService
	returnSvc  service.ReturnService
	penaltySvc service.PenaltyService
	retryOpts  []retry.Option
	logger     *zap.Logger
}

// NewLendingHandler 创建 LendingHandler
func NewLendingHandler(borrowSvc service.BorrowService, returnSvc service.ReturnService, penaltySvc service.PenaltyService, logger *zap.Logger) *LendingHandler {
	return &LendingHandler{borrowSvc: borrowSvc, returnSvc: returnSvc, penaltySvc: penaltySvc, logger: logger}
}

// Borrow 借书
// POST /api/v1/borrowings
func (h *LendingHandler) Borrow(c *gin.Context) {
	var req dto.BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParam, "参数校验失败")
		return
	}

	var record *model.BorrowingRecord
	err := retry.OnContention(c.Request.Context(), func(ctx context.Context) error {
		var err error
		record, err = h.borrowSvc.Borrow(ctx, req.StudentID, req.BookID)
		return err
	}, h.retryOpts...)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, dto.NewBorrowingResponse(record))
}

// ReturnBooks 批量归还
// POST /api/v1/returns
func (h *LendingHandler) ReturnBooks(c *gin.Context) {
	var req dto.ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidParam, "参数校验失败")
		return
	}

	var result *service.ReturnResult
	err := retry.OnContention(c.Request.Context(), func(ctx context.Context) error {
		var err error
		result, err = h.returnSvc.ReturnBooks(ctx, req.StudentID, req.BorrowingIDs)
		return err
	}, h.retryOpts...)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, result)
}

// SettlePenalty 结算单条借阅记录的罚金
// POST /api/v1/borrowings/:id/penalty
func (h *LendingHandler) SettlePenalty(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var amount int64
	err := retry.OnContention(c.Request.Context(), func(ctx context.Context) error {
		var err error
		amount, err = h.penaltySvc.SettlePenalty(ctx, id)
		return err
	}, h.retryOpts...)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, dto.PenaltyResponse{BorrowingID: id, AmountCents: amount})
}

// DeleteBorrowing 管理员删除借阅记录
// DELETE /api/v1/borrowings/:id
func (h *LendingHandler) DeleteBorrowing(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	operatorID, ok := MustGetOperatorID(c)
	if !ok {
		return
	}

	if err := h.borrowSvc.DeleteBorrowingRecord(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	h.logger.Info("借阅记录已删除", zap.Uint64("borrowing_id", id), zap.String("operator_id", operatorID))
	response.OK(c, gin.H{"borrowing_id": id})
}

// CurrentlyBorrowedCount 当前借出总数
// GET /api/v1/borrowings/count
func (h *LendingHandler) CurrentlyBorrowedCount(c *gin.Context) {
	count, err := h.borrowSvc.CurrentlyBorrowedCount(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, dto.CountResponse{Count: count})
}
