package service

import (
	"context"
	"fmt"

	"library-lending/internal/lending"
	"library-lending/internal/model"
	"library-lending/internal/repository"
	"library-lending/pkg/clock"
	pkgerrors "library-lending/pkg/errors"
)

// ValidationGate 借阅前置校验，必须在借阅事务内执行
type ValidationGate struct {
	clock        clock.Clock
	graceDays    int
	maxOpenLoans int
}

// NewValidationGate 创建 ValidationGate
func NewValidationGate(clk clock.Clock, graceDays, maxOpenLoans int) *ValidationGate {
	return &ValidationGate{clock: clk, graceDays: graceDays, maxOpenLoans: maxOpenLoans}
}

// Validate 依次检查：学生状态 → 图书可借 → 未还数量 → 逾期未还，遇到第一个失败即返回
// 学生行、图书行及学生的未还记录均以 FOR UPDATE 加锁，锁持有到事务结束
func (g *ValidationGate) Validate(ctx context.Context, tx *repository.Repository, studentID, bookID uint64) (*model.Book, error) {
	student, err := tx.Student.GetByIDForUpdate(ctx, studentID)
	if err != nil {
		return nil, notFoundAs(err, fmt.Errorf("学生不存在 (student_id=%d): %w", studentID, pkgerrors.ErrNotFound))
	}
	if student.MembershipStatus != model.MembershipActive {
		return nil, pkgerrors.NewValidationError(pkgerrors.KindStudentSuspended, studentID, bookID)
	}

	book, err := tx.Book.GetByIDForUpdate(ctx, bookID)
	if err != nil {
		return nil, notFoundAs(err, fmt.Errorf("图书不存在 (book_id=%d): %w", bookID, pkgerrors.ErrNotFound))
	}
	if book.Availability != model.BookAvailable {
		return nil, pkgerrors.NewValidationError(pkgerrors.KindBookUnavailable, studentID, bookID)
	}

	open, err := tx.Borrowing.ListOpenByStudentForUpdate(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(open) >= g.maxOpenLoans {
		return nil, pkgerrors.NewValidationError(pkgerrors.KindBorrowLimitReached, studentID, bookID)
	}

	now := g.clock.Now()
	for i := range open {
		if lending.PastGrace(open[i].BorrowedAt, now, g.graceDays) {
			return nil, pkgerrors.NewValidationError(pkgerrors.KindHasOverdueBooks, studentID, bookID)
		}
	}

	return book, nil
}
