package controller

import "time"

// Clock 控制器的时间源（可注入假时钟做确定性测试）
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker 周期触发器
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// realClock 墙钟实现
type realClock struct{}

// NewRealClock 创建墙钟时间源
func NewRealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) Chan() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()                  { r.t.Stop() }
