package model

import (
	"encoding/json"
	"time"
)

// 审计操作类型
const (
	AuditUpdate = "UPDATE"
	AuditDelete = "DELETE"
)

// AuditEntry 变更审计表 — 对应 audit_entries（只追加）
type AuditEntry struct {
	AuditID        uint64          `gorm:"primaryKey;autoIncrement"           json:"audit_id"`
	SubjectTable   string          `gorm:"type:varchar(64);not null"          json:"subject_table"`
	SubjectID      uint64          `gorm:"not null"                           json:"subject_id"`
	Operation      string          `gorm:"type:varchar(10);not null"          json:"operation"` // UPDATE | DELETE
	BeforeSnapshot json.RawMessage `gorm:"type:jsonb;not null"                json:"before_snapshot"`
	AfterSnapshot  json.RawMessage `gorm:"type:jsonb"                         json:"after_snapshot,omitempty"` // DELETE 时为空
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (AuditEntry) TableName() string { return "audit_entries" }
