package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"library-lending/internal/model"
	pkgerrors "library-lending/pkg/errors"
)

// ── Borrow 测试 ──

func TestBorrowService_Borrow_Success(t *testing.T) {
	svc, store, _, _ := setupTestService()
	sid := store.addStudent("张三", model.MembershipActive)
	bid := store.addBook("深入理解计算机系统", "Regular")

	rec, err := svc.Borrow.Borrow(context.Background(), sid, bid)
	if err != nil {
		t.Fatalf("Borrow 应成功: %v", err)
	}
	if rec.Status != model.BorrowStatusBorrowed {
		t.Errorf("期望状态 Borrowed，实际=%s", rec.Status)
	}
	if !rec.BorrowedAt.Equal(testNow) {
		t.Errorf("期望借出时间为当前时钟，实际=%s", rec.BorrowedAt)
	}
	if rec.ReturnedAt != nil {
		t.Error("新建记录 ReturnedAt 应为空")
	}
	if got := store.book(bid).Availability; got != model.BookBorrowed {
		t.Errorf("期望图书变为 Borrowed，实际=%s", got)
	}
}

func TestBorrowService_Borrow_StudentSuspended(t *testing.T) {
	svc, store, _, _ := setupTestService()
	sid := store.addStudent("李四", model.MembershipSuspended)
	other := store.addStudent("王五", model.MembershipActive)
	bid := store.addBook("算法导论", "Reference")
	// 图书本身也不可借，仍应报学生停用
	store.addLoan(other, bid, daysAgo(1))

	_, err := svc.Borrow.Borrow(context.Background(), sid, bid)
	if !errors.Is(err, pkgerrors.ErrStudentSuspended) {
		t.Fatalf("期望 ErrStudentSuspended，实际: %v", err)
	}
	var ve *pkgerrors.ValidationError
	if !errors.As(err, &ve) || ve.StudentID != sid || ve.BookID != bid {
		t.Errorf("错误应携带学生和图书 ID，实际: %+v", ve)
	}
	if store.openCount(sid) != 0 {
		t.Error("被拒绝的借阅不应创建记录")
	}
}

func TestBorrowService_Borrow_BookUnavailable(t *testing.T) {
	svc, store, _, _ := setupTestService()
	holder := store.addStudent("张三", model.MembershipActive)
	sid := store.addStudent("李四", model.MembershipActive)
	bid := store.addBook("人月神话", "Regular")
	store.addLoan(holder, bid, daysAgo(1))

	_, err := svc.Borrow.Borrow(context.Background(), sid, bid)
	if !errors.Is(err, pkgerrors.ErrBookUnavailable) {
		t.Fatalf("期望 ErrBookUnavailable，实际: %v", err)
	}
}

func TestBorrowService_Borrow_LimitReached(t *testing.T) {
	svc, store, _, _ := setupTestService()
	sid := store.addStudent("张三", model.MembershipActive)
	for i := 0; i < 3; i++ {
		store.addLoan(sid, store.addBook("已借图书", "Regular"), daysAgo(1))
	}
	bid := store.addBook("第四本", "Regular")

	_, err := svc.Borrow.Borrow(context.Background(), sid, bid)
	if !errors.Is(err, pkgerrors.ErrBorrowLimitReached) {
		t.Fatalf("期望 ErrBorrowLimitReached，实际: %v", err)
	}
	if n := store.openCount(sid); n != 3 {
		t.Errorf("期望仍为 3 条未还记录，实际=%d", n)
	}
	if got := store.book(bid).Availability; got != model.BookAvailable {
		t.Errorf("被拒绝后图书应仍可借，实际=%s", got)
	}
}

func TestBorrowService_Borrow_HasOverdueBooks(t *testing.T) {
	svc, store, _, _ := setupTestService()
	sid := store.addStudent("张三", model.MembershipActive)
	store.addLoan(sid, store.addBook("逾期图书", "Regular"), daysAgo(8))
	bid := store.addBook("新书", "Regular")

	_, err := svc.Borrow.Borrow(context.Background(), sid, bid)
	if !errors.Is(err, pkgerrors.ErrHasOverdueBooks) {
		t.Fatalf("期望 ErrHasOverdueBooks，实际: %v", err)
	}
	if !strings.Contains(err.Error(), "student_id=") {
		t.Errorf("错误信息应包含相关 ID，实际: %s", err.Error())
	}
}

func TestBorrowService_Borrow_GraceBoundaryAllowed(t *testing.T) {
	svc, store, _, _ := setupTestService()
	sid := store.addStudent("张三", model.MembershipActive)
	store.addLoan(sid, store.addBook("刚满七天", "Regular"), daysAgo(7))
	bid := store.addBook("新书", "Regular")

	if _, err := svc.Borrow.Borrow(context.Background(), sid, bid); err != nil {
		t.Fatalf("借出恰好七天不算逾期，应允许借阅: %v", err)
	}
}

func TestBorrowService_Borrow_NotFound(t *testing.T) {
	svc, store, _, _ := setupTestService()
	sid := store.addStudent("张三", model.MembershipActive)
	bid := store.addBook("图书", "Regular")

	if _, err := svc.Borrow.Borrow(context.Background(), 9999, bid); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Errorf("未知学生期望 ErrNotFound，实际: %v", err)
	}
	if _, err := svc.Borrow.Borrow(context.Background(), sid, 9999); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Errorf("未知图书期望 ErrNotFound，实际: %v", err)
	}
}

func TestBorrowService_Borrow_UniqueIndexMapsToUnavailable(t *testing.T) {
	svc, store, _, _ := setupTestService()
	holder := store.addStudent("张三", model.MembershipActive)
	sid := store.addStudent("李四", model.MembershipActive)
	bid := store.addBook("图书", "Regular")
	store.addLoan(holder, bid, daysAgo(1))
	// 可借标志与记录不一致，唯一索引兜底
	b := store.state.books[bid]
	b.Availability = model.BookAvailable
	store.state.books[bid] = b

	_, err := svc.Borrow.Borrow(context.Background(), sid, bid)
	if !errors.Is(err, pkgerrors.ErrBookUnavailable) {
		t.Fatalf("期望 ErrBookUnavailable，实际: %v", err)
	}
	if store.openCount(sid) != 0 {
		t.Error("冲突后不应留下记录")
	}
}

// ── 并发测试 ──

func TestBorrowService_Borrow_ConcurrentSameBook(t *testing.T) {
	svc, store, _, _ := setupTestService()
	bid := store.addBook("热门图书", "Regular")
	students := make([]uint64, 10)
	for i := range students {
		students[i] = store.addStudent("学生", model.MembershipActive)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(students))
	for i, sid := range students {
		wg.Add(1)
		go func(i int, sid uint64) {
			defer wg.Done()
			_, errs[i] = svc.Borrow.Borrow(context.Background(), sid, bid)
		}(i, sid)
	}
	wg.Wait()

	success := 0
	for _, err := range errs {
		switch {
		case err == nil:
			success++
		case !errors.Is(err, pkgerrors.ErrBookUnavailable):
			t.Errorf("失败方期望 ErrBookUnavailable，实际: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("同一本书只能借出一次，实际成功 %d 次", success)
	}
	if bad := store.availabilityViolations(); len(bad) > 0 {
		t.Errorf("图书可借状态与借阅记录不一致: %v", bad)
	}
}

func TestBorrowService_Borrow_ConcurrentLimit(t *testing.T) {
	svc, store, _, _ := setupTestService()
	sid := store.addStudent("张三", model.MembershipActive)
	books := make([]uint64, 6)
	for i := range books {
		books[i] = store.addBook("图书", "Regular")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	success := 0
	for _, bid := range books {
		wg.Add(1)
		go func(bid uint64) {
			defer wg.Done()
			if _, err := svc.Borrow.Borrow(context.Background(), sid, bid); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			} else if !errors.Is(err, pkgerrors.ErrBorrowLimitReached) {
				t.Errorf("期望 ErrBorrowLimitReached，实际: %v", err)
			}
		}(bid)
	}
	wg.Wait()

	if success != 3 {
		t.Errorf("期望恰好 3 次成功，实际=%d", success)
	}
	if n := store.openCount(sid); n > 3 {
		t.Errorf("未还记录不得超过 3 条，实际=%d", n)
	}
}

// ── DeleteBorrowingRecord 测试 ──

func TestBorrowService_Delete_OpenRecord(t *testing.T) {
	svc, store, _, _ := setupTestService()
	sid := store.addStudent("张三", model.MembershipActive)
	bid := store.addBook("图书", "Regular")
	rid := store.addLoan(sid, bid, daysAgo(2))

	if err := svc.Borrow.DeleteBorrowingRecord(context.Background(), rid); err != nil {
		t.Fatalf("删除应成功: %v", err)
	}
	if _, ok := store.state.records[rid]; ok {
		t.Error("记录应被删除")
	}
	if got := store.book(bid).Availability; got != model.BookAvailable {
		t.Errorf("删除未还记录后图书应恢复可借，实际=%s", got)
	}
	if len(store.state.audits) != 1 {
		t.Fatalf("期望 1 条审计记录，实际=%d", len(store.state.audits))
	}
	entry := store.state.audits[0]
	if entry.Operation != model.AuditDelete || entry.SubjectID != rid || entry.AfterSnapshot != nil {
		t.Errorf("DELETE 审计内容不正确: %+v", entry)
	}
	if !strings.Contains(string(entry.BeforeSnapshot), `"status":"Borrowed"`) {
		t.Errorf("删除前快照应包含原状态，实际: %s", entry.BeforeSnapshot)
	}
}

func TestBorrowService_Delete_HasPenalty(t *testing.T) {
	svc, store, _, _ := setupTestService()
	sid := store.addStudent("张三", model.MembershipActive)
	rid := store.addLoan(sid, store.addBook("图书", "Regular"), daysAgo(10))
	store.addPenalty(sid, rid, 300)

	err := svc.Borrow.DeleteBorrowingRecord(context.Background(), rid)
	if !errors.Is(err, pkgerrors.ErrRecordHasPenalty) {
		t.Fatalf("期望 ErrRecordHasPenalty，实际: %v", err)
	}
	if len(store.state.audits) != 0 {
		t.Error("拒绝删除时不应写审计")
	}
}

func TestBorrowService_Delete_NotFound(t *testing.T) {
	svc, _, _, _ := setupTestService()

	err := svc.Borrow.DeleteBorrowingRecord(context.Background(), 42)
	if !errors.Is(err, pkgerrors.ErrRecordNotFound) {
		t.Errorf("期望 ErrRecordNotFound，实际: %v", err)
	}
}

func TestBorrowService_Delete_AuditFailureRollsBack(t *testing.T) {
	svc, store, _, _ := setupTestService()
	sid := store.addStudent("张三", model.MembershipActive)
	bid := store.addBook("图书", "Regular")
	rid := store.addLoan(sid, bid, daysAgo(2))
	store.failAudit = errors.New("磁盘已满")

	err := svc.Borrow.DeleteBorrowingRecord(context.Background(), rid)
	if !errors.Is(err, pkgerrors.ErrAuditWriteFailed) {
		t.Fatalf("期望 ErrAuditWriteFailed，实际: %v", err)
	}
	if _, ok := store.state.records[rid]; !ok {
		t.Error("审计失败时删除必须回滚")
	}
	if got := store.book(bid).Availability; got != model.BookBorrowed {
		t.Errorf("审计失败时图书状态不应改变，实际=%s", got)
	}
}

// ── CurrentlyBorrowedCount 测试 ──

func TestBorrowService_CurrentlyBorrowedCount(t *testing.T) {
	svc, store, _, _ := setupTestService()
	sid := store.addStudent("张三", model.MembershipActive)
	store.addLoan(sid, store.addBook("A", "Regular"), daysAgo(1))
	store.addLoan(sid, store.addBook("B", "Regular"), daysAgo(1))
	store.addReturned(sid, store.addBook("C", "Regular"), daysAgo(5), daysAgo(2))

	n, err := svc.Borrow.CurrentlyBorrowedCount(context.Background())
	if err != nil {
		t.Fatalf("统计失败: %v", err)
	}
	if n != 2 {
		t.Errorf("期望 2 条在借，实际=%d", n)
	}

	store.failCountOpen = errors.New("连接断开")
	if _, err := svc.Borrow.CurrentlyBorrowedCount(context.Background()); err == nil {
		t.Error("存储错误应向上返回")
	}
}
