package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"library-lending/internal/model"
	"library-lending/internal/repository"
	pkgerrors "library-lending/pkg/errors"
)

// ── 内存状态 ──

type memState struct {
	books         map[uint64]model.Book
	students      map[uint64]model.Student
	records       map[uint64]model.BorrowingRecord
	penalties     map[uint64]model.Penalty // key: borrowing_id
	audits        []model.AuditEntry
	notifications []model.NotificationEntry
	categories    map[string]model.FeeCategory
	nextID        uint64
}

func newMemState() *memState {
	return &memState{
		books:     make(map[uint64]model.Book),
		students:  make(map[uint64]model.Student),
		records:   make(map[uint64]model.BorrowingRecord),
		penalties: make(map[uint64]model.Penalty),
		categories: map[string]model.FeeCategory{
			"Regular":    {Name: "Regular", FeePerDayCents: 100},
			"Reference":  {Name: "Reference", FeePerDayCents: 200},
			"Periodical": {Name: "Periodical", FeePerDayCents: 50},
		},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		books:         make(map[uint64]model.Book, len(s.books)),
		students:      make(map[uint64]model.Student, len(s.students)),
		records:       make(map[uint64]model.BorrowingRecord, len(s.records)),
		penalties:     make(map[uint64]model.Penalty, len(s.penalties)),
		audits:        append([]model.AuditEntry(nil), s.audits...),
		notifications: append([]model.NotificationEntry(nil), s.notifications...),
		categories:    make(map[string]model.FeeCategory, len(s.categories)),
		nextID:        s.nextID,
	}
	for k, v := range s.books {
		c.books[k] = v
	}
	for k, v := range s.students {
		c.students[k] = v
	}
	for k, v := range s.records {
		if v.ReturnedAt != nil {
			t := *v.ReturnedAt
			v.ReturnedAt = &t
		}
		c.records[k] = v
	}
	for k, v := range s.penalties {
		c.penalties[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	return c
}

func (s *memState) id() uint64 {
	s.nextID++
	return s.nextID
}

// ── Mock Store ──

// mockStore 以全局互斥锁串行化事务，事务失败时恢复快照
type mockStore struct {
	mu         sync.Mutex
	state      *memState
	savepoints map[string]*memState

	// 故障注入
	failAudit     error
	failCountOpen error

	txCount int
}

func newMockStore() *mockStore {
	return &mockStore{state: newMemState()}
}

func (m *mockStore) Transaction(ctx context.Context, fn func(tx *repository.Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	m.txCount++
	snapshot := m.state.clone()
	m.savepoints = make(map[string]*memState)

	if err := fn(m.repository()); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (m *mockStore) Reader() *repository.Repository {
	return m.repository()
}

func (m *mockStore) repository() *repository.Repository {
	return &repository.Repository{
		Book:         &mockBookRepo{m},
		Student:      &mockStudentRepo{m},
		Borrowing:    &mockBorrowingRepo{m},
		Penalty:      &mockPenaltyRepo{m},
		Audit:        &mockAuditRepo{m},
		Notification: &mockNotificationRepo{m},
		FeeCategory:  &mockFeeCategoryRepo{m},
		Savepoint:    &mockSavepoint{m},
	}
}

// ── 测试数据辅助（事务外调用）──

func (m *mockStore) addStudent(name, status string) uint64 {
	id := m.state.id()
	m.state.students[id] = model.Student{StudentID: id, Name: name, MembershipStatus: status}
	return id
}

func (m *mockStore) addBook(title, category string) uint64 {
	id := m.state.id()
	m.state.books[id] = model.Book{BookID: id, Title: title, Author: "测试作者", Category: category, Availability: model.BookAvailable}
	return id
}

// addLoan 直接写入一条未归还记录并把图书置为 Borrowed
func (m *mockStore) addLoan(studentID, bookID uint64, borrowedAt time.Time) uint64 {
	id := m.state.id()
	m.state.records[id] = model.BorrowingRecord{
		BorrowingID: id,
		BookID:      bookID,
		StudentID:   studentID,
		BorrowedAt:  borrowedAt,
		Status:      model.BorrowStatusBorrowed,
	}
	b := m.state.books[bookID]
	b.Availability = model.BookBorrowed
	m.state.books[bookID] = b
	return id
}

func (m *mockStore) addPenalty(studentID, borrowingID uint64, cents int64) {
	m.state.penalties[borrowingID] = model.Penalty{
		PenaltyID:   m.state.id(),
		StudentID:   studentID,
		BorrowingID: borrowingID,
		AmountCents: cents,
		Reason:      "测试罚金",
		PaidStatus:  model.PenaltyUnpaid,
	}
}

func (m *mockStore) record(id uint64) model.BorrowingRecord { return m.state.records[id] }
func (m *mockStore) book(id uint64) model.Book             { return m.state.books[id] }
func (m *mockStore) student(id uint64) model.Student       { return m.state.students[id] }

func (m *mockStore) openCount(studentID uint64) int {
	n := 0
	for _, r := range m.state.records {
		if r.StudentID == studentID && r.IsOpen() {
			n++
		}
	}
	return n
}

// ── Mock BookRepository ──

type mockBookRepo struct{ s *mockStore }

func (r *mockBookRepo) Create(_ context.Context, book *model.Book) error {
	book.BookID = r.s.state.id()
	r.s.state.books[book.BookID] = *book
	return nil
}

func (r *mockBookRepo) GetByID(_ context.Context, id uint64) (*model.Book, error) {
	b, ok := r.s.state.books[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &b, nil
}

func (r *mockBookRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Book, error) {
	return r.GetByID(ctx, id)
}

func (r *mockBookRepo) UpdateAvailability(_ context.Context, id uint64, availability string, at time.Time) error {
	b, ok := r.s.state.books[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	b.Availability = availability
	b.UpdatedAt = at
	r.s.state.books[id] = b
	return nil
}

// ── Mock StudentRepository ──

type mockStudentRepo struct{ s *mockStore }

func (r *mockStudentRepo) Create(_ context.Context, student *model.Student) error {
	student.StudentID = r.s.state.id()
	r.s.state.students[student.StudentID] = *student
	return nil
}

func (r *mockStudentRepo) GetByID(_ context.Context, id uint64) (*model.Student, error) {
	st, ok := r.s.state.students[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &st, nil
}

func (r *mockStudentRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Student, error) {
	return r.GetByID(ctx, id)
}

func (r *mockStudentRepo) UpdateMembershipStatus(_ context.Context, id uint64, status string, at time.Time) error {
	st, ok := r.s.state.students[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	st.MembershipStatus = status
	st.UpdatedAt = at
	r.s.state.students[id] = st
	return nil
}

// ── Mock BorrowingRepository ──

type mockBorrowingRepo struct{ s *mockStore }

func (r *mockBorrowingRepo) Create(_ context.Context, rec *model.BorrowingRecord) error {
	for _, existing := range r.s.state.records {
		if existing.BookID == rec.BookID && existing.IsOpen() {
			return fmt.Errorf("uq_borrowing_records_open_book: %w", pkgerrors.ErrDuplicate)
		}
	}
	rec.BorrowingID = r.s.state.id()
	r.s.state.records[rec.BorrowingID] = *rec
	return nil
}

func (r *mockBorrowingRepo) GetByID(_ context.Context, id uint64) (*model.BorrowingRecord, error) {
	rec, ok := r.s.state.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &rec, nil
}

func (r *mockBorrowingRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.BorrowingRecord, error) {
	return r.GetByID(ctx, id)
}

func (r *mockBorrowingRepo) sorted(keep func(model.BorrowingRecord) bool) []model.BorrowingRecord {
	out := []model.BorrowingRecord{}
	for _, rec := range r.s.state.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BorrowingID < out[j].BorrowingID })
	return out
}

func (r *mockBorrowingRepo) ListOpenByStudentForUpdate(_ context.Context, studentID uint64) ([]model.BorrowingRecord, error) {
	return r.sorted(func(rec model.BorrowingRecord) bool {
		return rec.StudentID == studentID && rec.IsOpen()
	}), nil
}

func (r *mockBorrowingRepo) ExistsOpenForBook(_ context.Context, bookID uint64) (bool, error) {
	for _, rec := range r.s.state.records {
		if rec.BookID == bookID && rec.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockBorrowingRepo) ListPastGrace(_ context.Context, cutoff time.Time, graceDays int) ([]model.BorrowingRecord, error) {
	return r.sorted(func(rec model.BorrowingRecord) bool {
		if !rec.BorrowedAt.Before(cutoff) {
			return false
		}
		if rec.IsOpen() {
			return true
		}
		return rec.ReturnedAt != nil && rec.ReturnedAt.After(rec.BorrowedAt.AddDate(0, 0, graceDays))
	}), nil
}

func (r *mockBorrowingRepo) CountOpen(_ context.Context) (int64, error) {
	if r.s.failCountOpen != nil {
		return 0, r.s.failCountOpen
	}
	var n int64
	for _, rec := range r.s.state.records {
		if rec.IsOpen() {
			n++
		}
	}
	return n, nil
}

func (r *mockBorrowingRepo) UpdateStatus(_ context.Context, id uint64, status string, returnedAt *time.Time, at time.Time) error {
	rec, ok := r.s.state.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	// 与 chk_returned_at_iff_returned 一致
	if (status == model.BorrowStatusReturned) != (returnedAt != nil) {
		return errors.New("violates check constraint chk_returned_at_iff_returned")
	}
	rec.Status = status
	if returnedAt != nil {
		t := *returnedAt
		rec.ReturnedAt = &t
	} else {
		rec.ReturnedAt = nil
	}
	rec.UpdatedAt = at
	r.s.state.records[id] = rec
	return nil
}

func (r *mockBorrowingRepo) Delete(_ context.Context, id uint64) error {
	if _, ok := r.s.state.records[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	if _, ok := r.s.state.penalties[id]; ok {
		return fmt.Errorf("penalties_borrowing_id_fkey: %w", pkgerrors.ErrNotFound)
	}
	delete(r.s.state.records, id)
	return nil
}

// ── Mock PenaltyRepository ──

type mockPenaltyRepo struct{ s *mockStore }

func (r *mockPenaltyRepo) GetByBorrowingID(_ context.Context, borrowingID uint64) (*model.Penalty, error) {
	p, ok := r.s.state.penalties[borrowingID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *mockPenaltyRepo) CreateIfAbsent(_ context.Context, penalty *model.Penalty) (bool, error) {
	if _, ok := r.s.state.penalties[penalty.BorrowingID]; ok {
		return false, nil
	}
	penalty.PenaltyID = r.s.state.id()
	r.s.state.penalties[penalty.BorrowingID] = *penalty
	return true, nil
}

func (r *mockPenaltyRepo) SumUnpaidByStudent(_ context.Context, studentID uint64) (int64, error) {
	var total int64
	for _, p := range r.s.state.penalties {
		if p.StudentID == studentID && p.PaidStatus == model.PenaltyUnpaid {
			total += p.AmountCents
		}
	}
	return total, nil
}

func (r *mockPenaltyRepo) ListUnpaidTotalsAbove(_ context.Context, thresholdCents int64) ([]model.StudentPenaltyTotal, error) {
	sums := make(map[uint64]int64)
	for _, p := range r.s.state.penalties {
		if p.PaidStatus == model.PenaltyUnpaid {
			sums[p.StudentID] += p.AmountCents
		}
	}
	out := []model.StudentPenaltyTotal{}
	for id, sum := range sums {
		if sum > thresholdCents {
			out = append(out, model.StudentPenaltyTotal{StudentID: id, UnpaidCents: sum})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// ── Mock AuditRepository ──

type mockAuditRepo struct{ s *mockStore }

func (r *mockAuditRepo) Create(_ context.Context, entry *model.AuditEntry) error {
	if r.s.failAudit != nil {
		return r.s.failAudit
	}
	entry.AuditID = r.s.state.id()
	r.s.state.audits = append(r.s.state.audits, *entry)
	return nil
}

func (r *mockAuditRepo) ListBySubject(_ context.Context, table string, subjectID uint64) ([]model.AuditEntry, error) {
	out := []model.AuditEntry{}
	for _, e := range r.s.state.audits {
		if e.SubjectTable == table && e.SubjectID == subjectID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct{ s *mockStore }

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

func (r *mockNotificationRepo) ExistsForDay(_ context.Context, studentID, bookID uint64, day time.Time) (bool, error) {
	for _, n := range r.s.state.notifications {
		if n.StudentID == studentID && n.BookID == bookID && sameDay(n.NoticeDate, day) {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockNotificationRepo) CreateIfAbsent(ctx context.Context, entry *model.NotificationEntry) (bool, error) {
	exists, _ := r.ExistsForDay(ctx, entry.StudentID, entry.BookID, entry.NoticeDate)
	if exists {
		return false, nil
	}
	entry.NotificationID = r.s.state.id()
	r.s.state.notifications = append(r.s.state.notifications, *entry)
	return true, nil
}

// ── Mock FeeCategoryRepository ──

type mockFeeCategoryRepo struct{ s *mockStore }

func (r *mockFeeCategoryRepo) GetByName(_ context.Context, name string) (*model.FeeCategory, error) {
	c, ok := r.s.state.categories[name]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *mockFeeCategoryRepo) List(_ context.Context) ([]model.FeeCategory, error) {
	out := []model.FeeCategory{}
	for _, c := range r.s.state.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ── Mock SavepointManager ──

type mockSavepoint struct{ s *mockStore }

func (sp *mockSavepoint) SavePoint(_ context.Context, name string) error {
	sp.s.savepoints[name] = sp.s.state.clone()
	return nil
}

func (sp *mockSavepoint) RollbackTo(_ context.Context, name string) error {
	saved, ok := sp.s.savepoints[name]
	if !ok {
		return fmt.Errorf("savepoint %q does not exist", name)
	}
	sp.s.state = saved.clone()
	return nil
}

// ── Mock NoticePublisher ──

type mockPublisher struct {
	mu        sync.Mutex
	published []OverdueNotice
	keys      []string
	fail      error
}

func (p *mockPublisher) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.keys = append(p.keys, key)
	p.published = append(p.published, v.(OverdueNotice))
	return nil
}
