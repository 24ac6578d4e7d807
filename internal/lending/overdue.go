// Package lending 借阅规则中的纯计算部分：逾期天数、宽限期判断。
// 不访问存储，不读取时钟，所有时间由调用方传入。
package lending

import (
	"time"

	pkgerrors "library-lending/pkg/errors"
)

const (
	// DefaultGraceDays 借出后多少天内归还不算逾期
	DefaultGraceDays = 7
	// DefaultMaxOpenLoans 每名学生同时持有的未归还记录上限
	DefaultMaxOpenLoans = 3
)

// OverdueDays 计算逾期天数：max(0, 自然日差(borrowedAt+graceDays, reference))
// 按 reference 所在时区截断到自然日，同一天内的零头不计。
func OverdueDays(borrowedAt, reference time.Time, graceDays int) (int, error) {
	if graceDays < 0 {
		return 0, pkgerrors.ErrInvalidGracePeriod
	}
	due := borrowedAt.AddDate(0, 0, graceDays)
	days := calendarDaysBetween(due, reference)
	if days < 0 {
		return 0, nil
	}
	return days, nil
}

// ReferenceInstant 已归还取归还时间，未归还取当前时间
func ReferenceInstant(returnedAt *time.Time, now time.Time) time.Time {
	if returnedAt != nil {
		return *returnedAt
	}
	return now
}

// PastGrace 判断借出时间加宽限期是否已早于 now（借阅前置校验用，按时刻比较）
func PastGrace(borrowedAt, now time.Time, graceDays int) bool {
	return borrowedAt.AddDate(0, 0, graceDays).Before(now)
}

// GraceCutoff 借出时间早于该时刻的记录已超过宽限期
func GraceCutoff(now time.Time, graceDays int) time.Time {
	return now.AddDate(0, 0, -graceDays)
}

// DayOf 返回 t 所在自然日的零点（保留 t 的时区）
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func calendarDaysBetween(from, to time.Time) int {
	from = from.In(to.Location())
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	// 用 UTC 零点相减，避开夏令时导致的 23/25 小时
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
