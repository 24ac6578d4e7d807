package clock

import (
	"sync"
	"time"
)

// Clock 提供当前时间，依赖注入以便测试时间相关逻辑
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// System 返回系统时钟
func System() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

// Fixed 可手动拨动的时钟（测试用）
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed 创建停在 t 的时钟
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set 把时钟拨到 t
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance 时钟前进 d
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
