package errors

import (
	"errors"
	"fmt"
)

// ── 通用错误 ──

var (
	// ErrNotFound 引用的实体不存在
	ErrNotFound = errors.New("记录不存在")
	// ErrRecordNotFound 借阅记录不存在（批量归还时使用）
	ErrRecordNotFound = fmt.Errorf("借阅记录不存在: %w", ErrNotFound)
	// ErrOwnershipMismatch 借阅记录不属于当前学生
	ErrOwnershipMismatch = errors.New("借阅记录不属于该学生")
	// ErrContention 等待行锁超时、死锁或序列化冲突，调用方可重试
	ErrContention = errors.New("资源竞争，请稍后重试")
	// ErrDuplicate 违反唯一约束
	ErrDuplicate = errors.New("记录已存在")
	// ErrAuditWriteFailed 审计日志写入失败，所在事务必须回滚
	ErrAuditWriteFailed = errors.New("审计日志写入失败")
	// ErrRecordHasPenalty 借阅记录已产生罚金，不可删除
	ErrRecordHasPenalty = errors.New("借阅记录已产生罚金，不可删除")
	// ErrInvalidGracePeriod 宽限期不能为负数
	ErrInvalidGracePeriod = errors.New("宽限期不能为负数")
	// ErrInvalidThreshold 停用阈值不能为负数
	ErrInvalidThreshold = errors.New("停用阈值不能为负数")
)

// ── 借阅校验错误 ──

// ValidationKind 借阅前置校验失败的类别
type ValidationKind string

const (
	KindStudentSuspended   ValidationKind = "StudentSuspended"
	KindBookUnavailable    ValidationKind = "BookUnavailable"
	KindBorrowLimitReached ValidationKind = "BorrowLimitReached"
	KindHasOverdueBooks    ValidationKind = "HasOverdueBooks"
)

// 各类别的哨兵错误，配合 errors.Is 使用
var (
	ErrStudentSuspended   = &ValidationError{Kind: KindStudentSuspended}
	ErrBookUnavailable    = &ValidationError{Kind: KindBookUnavailable}
	ErrBorrowLimitReached = &ValidationError{Kind: KindBorrowLimitReached}
	ErrHasOverdueBooks    = &ValidationError{Kind: KindHasOverdueBooks}
)

var validationMessages = map[ValidationKind]string{
	KindStudentSuspended:   "学生账号已停用",
	KindBookUnavailable:    "图书当前不可借",
	KindBorrowLimitReached: "已达到最大借阅数量",
	KindHasOverdueBooks:    "存在逾期未还的图书",
}

// ValidationError 借阅校验失败，携带违反的规则和相关实体 ID
type ValidationError struct {
	Kind      ValidationKind
	StudentID uint64
	BookID    uint64
}

// NewValidationError 创建校验错误
func NewValidationError(kind ValidationKind, studentID, bookID uint64) *ValidationError {
	return &ValidationError{Kind: kind, StudentID: studentID, BookID: bookID}
}

func (e *ValidationError) Error() string {
	msg, ok := validationMessages[e.Kind]
	if !ok {
		msg = string(e.Kind)
	}
	if e.StudentID == 0 && e.BookID == 0 {
		return msg
	}
	return fmt.Sprintf("%s (student_id=%d, book_id=%d)", msg, e.StudentID, e.BookID)
}

// Is 按类别匹配，忽略 ID
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// ── 批量归还错误 ──

// BatchError 批量归还中第一个失败项，整个批次已回滚
type BatchError struct {
	Index       int
	BorrowingID uint64
	Cause       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("批量归还失败，已全部回滚 (第 %d 项, borrowing_id=%d): %v", e.Index+1, e.BorrowingID, e.Cause)
}

func (e *BatchError) Unwrap() error { return e.Cause }
