package model

// 罚金支付状态
const (
	PenaltyUnpaid = "unpaid"
	PenaltyPaid   = "paid"
)

// Penalty 逾期罚金表 — 对应 penalties（每条借阅记录至多一条）
type Penalty struct {
	PenaltyID   uint64 `gorm:"primaryKey;autoIncrement"                   json:"penalty_id"`
	StudentID   uint64 `gorm:"not null;index"                             json:"student_id"`
	BorrowingID uint64 `gorm:"not null;uniqueIndex"                       json:"borrowing_id"`
	AmountCents int64  `gorm:"not null"                                   json:"amount_cents"`
	Reason      string `gorm:"type:varchar(255);not null"                 json:"reason"`
	PaidStatus  string `gorm:"type:varchar(20);not null;default:'unpaid'" json:"paid_status"` // unpaid | paid
	BaseModel
}

// TableName 指定表名
func (Penalty) TableName() string { return "penalties" }

// StudentPenaltyTotal 学生未缴罚金汇总（停用扫描用）
type StudentPenaltyTotal struct {
	StudentID   uint64
	UnpaidCents int64
}
