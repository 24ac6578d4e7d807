package dto

import (
	"time"

	"library-lending/internal/model"
)

// 时间字段统一输出 RFC3339
const timeLayout = time.RFC3339

// ── 借阅模块 DTO ──

// BorrowRequest 借书请求
type BorrowRequest struct {
	StudentID uint64 `json:"student_id" binding:"required"`
	BookID    uint64 `json:"book_id"    binding:"required"`
}

// ReturnRequest 批量归还请求
type ReturnRequest struct {
	StudentID    uint64   `json:"student_id"    binding:"required"`
	BorrowingIDs []uint64 `json:"borrowing_ids" binding:"required,min=1,max=50,dive,required"`
}

// SuspensionSweepRequest 停用扫描请求，未指定阈值时使用配置值
type SuspensionSweepRequest struct {
	ThresholdCents *int64 `json:"threshold_cents" binding:"omitempty,min=0"`
}

// BorrowingResponse 借阅记录响应
type BorrowingResponse struct {
	BorrowingID uint64  `json:"borrowing_id"`
	StudentID   uint64  `json:"student_id"`
	BookID      uint64  `json:"book_id"`
	BorrowedAt  string  `json:"borrowed_at"`
	ReturnedAt  *string `json:"returned_at,omitempty"`
	Status      string  `json:"status"`
}

// NewBorrowingResponse 由模型构造响应
func NewBorrowingResponse(r *model.BorrowingRecord) BorrowingResponse {
	resp := BorrowingResponse{
		BorrowingID: r.BorrowingID,
		StudentID:   r.StudentID,
		BookID:      r.BookID,
		BorrowedAt:  r.BorrowedAt.Format(timeLayout),
		Status:      r.Status,
	}
	if r.ReturnedAt != nil {
		s := r.ReturnedAt.Format(timeLayout)
		resp.ReturnedAt = &s
	}
	return resp
}

// PenaltyResponse 罚金结算响应
type PenaltyResponse struct {
	BorrowingID uint64 `json:"borrowing_id"`
	AmountCents int64  `json:"amount_cents"`
}

// CountResponse 计数响应
type CountResponse struct {
	Count int64 `json:"count"`
}
