package service

import (
	"time"

	"go.uber.org/zap"

	"library-lending/config"
	"library-lending/internal/model"
	"library-lending/pkg/clock"
)

// ── 测试辅助 ──

var testNow = time.Date(2025, 10, 20, 10, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time { return testNow.AddDate(0, 0, -n) }

func testLendingConfig() *config.LendingConfig {
	return &config.LendingConfig{GraceDays: 7, MaxOpenLoans: 3, SuspensionThresholdCents: 5000}
}

func setupTestService() (*Service, *mockStore, *clock.Fixed, *mockPublisher) {
	store := newMockStore()
	clk := clock.NewFixed(testNow)
	pub := &mockPublisher{}
	svc := NewService(testLendingConfig(), store, clk, pub, zap.NewNop())
	return svc, store, clk, pub
}

// addReturned 直接写入一条已归还记录
func (m *mockStore) addReturned(studentID, bookID uint64, borrowedAt, returnedAt time.Time) uint64 {
	id := m.state.id()
	m.state.records[id] = model.BorrowingRecord{
		BorrowingID: id,
		BookID:      bookID,
		StudentID:   studentID,
		BorrowedAt:  borrowedAt,
		ReturnedAt:  &returnedAt,
		Status:      model.BorrowStatusReturned,
	}
	return id
}

// assertAvailabilityConsistent 每本书 Borrowed 当且仅当存在未归还记录，且至多一条
func (m *mockStore) availabilityViolations() []uint64 {
	var bad []uint64
	for id, b := range m.state.books {
		open := 0
		for _, r := range m.state.records {
			if r.BookID == id && r.IsOpen() {
				open++
			}
		}
		if open > 1 || (open == 1) != (b.Availability == model.BookBorrowed) {
			bad = append(bad, id)
		}
	}
	return bad
}
