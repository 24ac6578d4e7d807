// Package report 借阅历史与图书状态的只读投影，直接查询数据库，不经过事务协调器。
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"library-lending/internal/lending"
	"library-lending/internal/model"
	"library-lending/pkg/clock"
	pkgerrors "library-lending/pkg/errors"
)

const dialectPostgres = "postgres"

// 借阅历史中的归还状态
const (
	ReturnStatusOnLoan       = "OnLoan"
	ReturnStatusOverdue      = "Overdue"
	ReturnStatusReturned     = "ReturnedOnTime"
	ReturnStatusReturnedLate = "ReturnedLate"
)

var errBuildingQuery = errors.New("构造查询失败")

// HistoryEntry 学生借阅历史中的一行
type HistoryEntry struct {
	BorrowingID  uint64     `db:"borrowing_id"  json:"borrowing_id"`
	BookID       uint64     `db:"book_id"       json:"book_id"`
	Title        string     `db:"title"         json:"title"`
	Author       string     `db:"author"        json:"author"`
	BorrowedAt   time.Time  `db:"borrowed_at"   json:"borrowed_at"`
	ReturnedAt   *time.Time `db:"returned_at"   json:"returned_at,omitempty"`
	Status       string     `db:"status"        json:"status"`
	PenaltyCents int64      `db:"penalty_cents" json:"penalty_cents"`
	ReturnStatus string     `db:"-"             json:"return_status"`
}

// StudentHistory 学生借阅历史
type StudentHistory struct {
	StudentID         uint64         `json:"student_id"`
	Name              string         `json:"name"`
	MembershipStatus  string         `json:"membership_status"`
	Entries           []HistoryEntry `json:"entries"`
	TotalPenaltyCents int64          `json:"total_penalty_cents"`
}

// BookStatus 单本图书的可借状态、当前借阅人与逾期天数
type BookStatus struct {
	BookID       uint64     `db:"book_id"       json:"book_id"`
	Title        string     `db:"title"         json:"title"`
	Author       string     `db:"author"        json:"author"`
	Category     string     `db:"category"      json:"category"`
	Availability string     `db:"availability"  json:"availability"`
	BorrowingID  *uint64    `db:"borrowing_id"  json:"borrowing_id,omitempty"`
	BorrowerID   *uint64    `db:"borrower_id"   json:"borrower_id,omitempty"`
	BorrowerName *string    `db:"borrower_name" json:"borrower_name,omitempty"`
	BorrowedAt   *time.Time `db:"borrowed_at"   json:"borrowed_at,omitempty"`
	OverdueDays  int        `db:"-"             json:"overdue_days"`
}

type studentRow struct {
	StudentID        uint64 `db:"student_id"`
	Name             string `db:"name"`
	MembershipStatus string `db:"membership_status"`
}

// Reporter 只读报表查询
type Reporter struct {
	db        *sqlx.DB
	clock     clock.Clock
	graceDays int
	logger    *zap.Logger
}

// NewReporter 在 gorm 使用的同一连接池上创建报表查询
func NewReporter(db *sql.DB, clk clock.Clock, graceDays int, logger *zap.Logger) *Reporter {
	return &Reporter{
		db:        sqlx.NewDb(db, "pgx"),
		clock:     clk,
		graceDays: graceDays,
		logger:    logger,
	}
}

// ────────────────────── StudentHistory ──────────────────────

func buildStudentQuery(studentID uint64) (string, []interface{}, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From("students").
		Select("student_id", "name", "membership_status").
		Where(goqu.C("student_id").Eq(studentID)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return "", nil, errors.Join(errBuildingQuery, err)
	}
	return query, args, nil
}

func buildHistoryQuery(studentID uint64) (string, []interface{}, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(goqu.T("borrowing_records").As("br")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.book_id").Eq(goqu.I("br.book_id")))).
		LeftJoin(goqu.T("penalties").As("p"), goqu.On(goqu.I("p.borrowing_id").Eq(goqu.I("br.borrowing_id")))).
		Select(
			goqu.I("br.borrowing_id"),
			goqu.I("br.book_id"),
			goqu.I("b.title"),
			goqu.I("b.author"),
			goqu.I("br.borrowed_at"),
			goqu.I("br.returned_at"),
			goqu.I("br.status"),
			goqu.COALESCE(goqu.I("p.amount_cents"), goqu.L("0")).As("penalty_cents"),
		).
		Where(goqu.I("br.student_id").Eq(studentID)).
		Order(goqu.I("br.borrowed_at").Desc(), goqu.I("br.borrowing_id").Desc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return "", nil, errors.Join(errBuildingQuery, err)
	}
	return query, args, nil
}

// StudentHistory 查询学生全部借阅记录及罚金合计
func (r *Reporter) StudentHistory(ctx context.Context, studentID uint64) (*StudentHistory, error) {
	query, args, err := buildStudentQuery(studentID)
	if err != nil {
		return nil, err
	}
	var student studentRow
	if err := r.db.GetContext(ctx, &student, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("学生不存在 (student_id=%d): %w", studentID, pkgerrors.ErrNotFound)
		}
		r.logger.Error("查询学生失败", zap.Uint64("student_id", studentID), zap.Error(err))
		return nil, err
	}

	query, args, err = buildHistoryQuery(studentID)
	if err != nil {
		return nil, err
	}
	entries := []HistoryEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.Error("查询借阅历史失败", zap.Uint64("student_id", studentID), zap.Error(err))
		return nil, err
	}

	now := r.clock.Now()
	history := &StudentHistory{
		StudentID:        student.StudentID,
		Name:             student.Name,
		MembershipStatus: student.MembershipStatus,
		Entries:          entries,
	}
	for i := range history.Entries {
		e := &history.Entries[i]
		e.ReturnStatus = deriveReturnStatus(e.BorrowedAt, e.ReturnedAt, now, r.graceDays)
		history.TotalPenaltyCents += e.PenaltyCents
	}
	return history, nil
}

// deriveReturnStatus 按归还时间与宽限期推导展示用状态
func deriveReturnStatus(borrowedAt time.Time, returnedAt *time.Time, now time.Time, graceDays int) string {
	if returnedAt == nil {
		if lending.PastGrace(borrowedAt, now, graceDays) {
			return ReturnStatusOverdue
		}
		return ReturnStatusOnLoan
	}
	if lending.PastGrace(borrowedAt, *returnedAt, graceDays) {
		return ReturnStatusReturnedLate
	}
	return ReturnStatusReturned
}

// ────────────────────── BookReport ──────────────────────

func buildBookReportQuery() (string, []interface{}, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(goqu.T("books").As("b")).
		LeftJoin(goqu.T("borrowing_records").As("br"), goqu.On(
			goqu.I("br.book_id").Eq(goqu.I("b.book_id")),
			goqu.I("br.status").Neq(model.BorrowStatusReturned),
		)).
		LeftJoin(goqu.T("students").As("s"), goqu.On(goqu.I("s.student_id").Eq(goqu.I("br.student_id")))).
		Select(
			goqu.I("b.book_id"),
			goqu.I("b.title"),
			goqu.I("b.author"),
			goqu.I("b.category"),
			goqu.I("b.availability"),
			goqu.I("br.borrowing_id"),
			goqu.I("s.student_id").As("borrower_id"),
			goqu.I("s.name").As("borrower_name"),
			goqu.I("br.borrowed_at"),
		).
		Order(goqu.I("b.book_id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return "", nil, errors.Join(errBuildingQuery, err)
	}
	return query, args, nil
}

// BookReport 列出全部图书的可借状态、当前借阅人与逾期天数
func (r *Reporter) BookReport(ctx context.Context) ([]BookStatus, error) {
	query, args, err := buildBookReportQuery()
	if err != nil {
		return nil, err
	}
	rows := []BookStatus{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.Error("查询图书报表失败", zap.Error(err))
		return nil, err
	}

	now := r.clock.Now()
	for i := range rows {
		if rows[i].BorrowedAt == nil {
			continue
		}
		days, err := lending.OverdueDays(*rows[i].BorrowedAt, now, r.graceDays)
		if err != nil {
			return nil, err
		}
		rows[i].OverdueDays = days
	}
	return rows, nil
}
