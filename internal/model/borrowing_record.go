package model

import "time"

// 借阅记录状态
const (
	BorrowStatusBorrowed = "Borrowed"
	BorrowStatusOverdue  = "Overdue"
	BorrowStatusReturned = "Returned"
)

// BorrowingRecord 借阅记录表 — 对应 borrowing_records
// 约束：ReturnedAt 非空当且仅当 Status = Returned；每本书至多一条未归还记录
type BorrowingRecord struct {
	BorrowingID uint64     `gorm:"primaryKey;autoIncrement"                      json:"borrowing_id"`
	BookID      uint64     `gorm:"not null;index"                                json:"book_id"`
	StudentID   uint64     `gorm:"not null;index"                                json:"student_id"`
	BorrowedAt  time.Time  `gorm:"not null"                                      json:"borrowed_at"`
	ReturnedAt  *time.Time `json:"returned_at,omitempty"`
	Status      string     `gorm:"type:varchar(20);not null;default:'Borrowed'"  json:"status"` // Borrowed | Overdue | Returned
	BaseModel

	// 关联
	Book    *Book    `gorm:"foreignKey:BookID;references:BookID"       json:"book,omitempty"`
	Student *Student `gorm:"foreignKey:StudentID;references:StudentID" json:"student,omitempty"`
}

// TableName 指定表名
func (BorrowingRecord) TableName() string { return "borrowing_records" }

// IsOpen 未归还
func (r *BorrowingRecord) IsOpen() bool { return r.Status != BorrowStatusReturned }
