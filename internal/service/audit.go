package service

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"library-lending/internal/model"
	"library-lending/internal/repository"
	"library-lending/pkg/clock"
	pkgerrors "library-lending/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const tableBorrowingRecords = "borrowing_records"

// recordSnapshot 借阅记录审计快照，只含表内列
type recordSnapshot struct {
	BorrowingID uint64     `json:"borrowing_id"`
	BookID      uint64     `json:"book_id"`
	StudentID   uint64     `json:"student_id"`
	BorrowedAt  time.Time  `json:"borrowed_at"`
	ReturnedAt  *time.Time `json:"returned_at"`
	Status      string     `json:"status"`
}

func snapshotOf(r *model.BorrowingRecord) recordSnapshot {
	return recordSnapshot{
		BorrowingID: r.BorrowingID,
		BookID:      r.BookID,
		StudentID:   r.StudentID,
		BorrowedAt:  r.BorrowedAt,
		ReturnedAt:  r.ReturnedAt,
		Status:      r.Status,
	}
}

// AuditRecorder 在调用方事务内同步写入审计日志
// 任何失败都以 ErrAuditWriteFailed 返回，调用方必须回滚整个事务
type AuditRecorder struct {
	clock clock.Clock
}

// NewAuditRecorder 创建 AuditRecorder
func NewAuditRecorder(clk clock.Clock) *AuditRecorder {
	return &AuditRecorder{clock: clk}
}

// Record 追加一条审计记录；DELETE 时 after 必须为 nil
func (a *AuditRecorder) Record(ctx context.Context, tx *repository.Repository, table string, subjectID uint64, op string, before, after interface{}) error {
	entry, err := a.buildEntry(table, subjectID, op, before, after)
	if err != nil {
		return err
	}
	if err := tx.Audit.Create(ctx, entry); err != nil {
		return fmt.Errorf("%w (%s #%d): %w", pkgerrors.ErrAuditWriteFailed, table, subjectID, err)
	}
	return nil
}

func (a *AuditRecorder) buildEntry(table string, subjectID uint64, op string, before, after interface{}) (*model.AuditEntry, error) {
	fail := func(reason string) error {
		return fmt.Errorf("%w (%s #%d): %s", pkgerrors.ErrAuditWriteFailed, table, subjectID, reason)
	}

	switch op {
	case model.AuditUpdate:
		if after == nil {
			return nil, fail("UPDATE 缺少变更后快照")
		}
	case model.AuditDelete:
		if after != nil {
			return nil, fail("DELETE 不应携带变更后快照")
		}
	default:
		return nil, fail("未知操作类型 " + op)
	}
	if table == "" || before == nil {
		return nil, fail("缺少审计对象或变更前快照")
	}

	beforeJSON, err := encodeSnapshot(before)
	if err != nil {
		return nil, fail(err.Error())
	}
	var afterJSON []byte
	if after != nil {
		if afterJSON, err = encodeSnapshot(after); err != nil {
			return nil, fail(err.Error())
		}
	}

	return &model.AuditEntry{
		SubjectTable:   table,
		SubjectID:      subjectID,
		Operation:      op,
		BeforeSnapshot: beforeJSON,
		AfterSnapshot:  afterJSON,
		CreatedAt:      a.clock.Now(),
	}, nil
}

func encodeSnapshot(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("快照编码失败: %w", err)
	}
	if !json.Valid(b) || string(b) == "null" {
		return nil, fmt.Errorf("快照不是合法 JSON 对象")
	}
	return b, nil
}
