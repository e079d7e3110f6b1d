package testkit

import (
	"sync"
	"time"
)

// FakeClock 可手动推进的时钟，Sleep 直接推进时间而不阻塞
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewFakeClock 创建停在 now 的假时钟
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// NewFakeClockAt 创建停在指定 Unix 毫秒的假时钟
func NewFakeClockAt(unixMilli int64) *FakeClock {
	return NewFakeClock(time.UnixMilli(unixMilli))
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
}

// Advance 向前（d 为负时向后）拨动时钟
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set 将时钟设为 t
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Sleeps 返回所有 Sleep 调用的时长
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}
