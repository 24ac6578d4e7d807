package model

import "time"

// NotificationEntry 逾期通知记录表 — 对应 notification_entries
// 同一 (学生, 图书, 自然日) 至多一条
type NotificationEntry struct {
	NotificationID uint64    `gorm:"primaryKey;autoIncrement"           json:"notification_id"`
	StudentID      uint64    `gorm:"not null"                           json:"student_id"`
	BookID         uint64    `gorm:"not null"                           json:"book_id"`
	BorrowingID    uint64    `gorm:"not null"                           json:"borrowing_id"`
	OverdueDays    int       `gorm:"not null"                           json:"overdue_days"`
	NoticeDate     time.Time `gorm:"type:date;not null"                 json:"notice_date"`
	SentAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"sent_at"`
}

// TableName 指定表名
func (NotificationEntry) TableName() string { return "notification_entries" }
