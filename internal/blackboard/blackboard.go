// Package blackboard 提供会话共享状态（黑板）
//
// 黑板是控制回路的单一可变世界状态：
// - 当前睡姿、当前睡眠阶段（由感知管线写入）
// - 天气快照、睡前自报、会话时长、睡眠负债、夜间时段
// - 本周期内各决策源提交的假设台账
//
// 一个活动会话只有一个黑板实例，随会话对象创建与销毁，
// 字段更新为浅合并、后写覆盖，不做版本管理。
// 控制周期本身是串行的，但感知消费者与控制器运行在不同 goroutine，
// 因此句柄内部用互斥锁保护。
package blackboard

import (
	"sync"
	"time"

	"wisefido-sleepcomfort/internal/models"
)

// Context 黑板上下文快照
type Context struct {
	CurrentPosture         models.Posture
	CurrentSleepStage      models.SleepStage
	Weather                *models.WeatherData
	PreSleep               *models.PreSleepContext
	SessionDurationMinutes float64
	SleepDebt              float64 // 小时
	TimeOfNight            models.TimeOfNight
}

// ContextUpdate 上下文部分更新（nil 字段不修改）
type ContextUpdate struct {
	Posture                *models.Posture
	SleepStage             *models.SleepStage
	Weather                *models.WeatherData
	PreSleep               *models.PreSleepContext
	SessionDurationMinutes *float64
	SleepDebt              *float64
	TimeOfNight            *models.TimeOfNight
}

// Blackboard 会话黑板
type Blackboard struct {
	mu           sync.Mutex
	ctx          Context
	hypotheses   []models.Hypothesis
	lastResolved []models.ResolvedAction
	resolvedAt   time.Time
}

// New 创建黑板（初始状态：姿态 unknown、阶段 awake）
func New() *Blackboard {
	return &Blackboard{
		ctx: defaultContext(),
	}
}

func defaultContext() Context {
	return Context{
		CurrentPosture:    models.PostureUnknown,
		CurrentSleepStage: models.StageAwake,
	}
}

// UpdateContext 浅合并上下文字段（后写覆盖）
func (b *Blackboard) UpdateContext(u ContextUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if u.Posture != nil {
		b.ctx.CurrentPosture = *u.Posture
	}
	if u.SleepStage != nil {
		b.ctx.CurrentSleepStage = *u.SleepStage
	}
	if u.Weather != nil {
		w := *u.Weather
		b.ctx.Weather = &w
	}
	if u.PreSleep != nil {
		p := *u.PreSleep
		b.ctx.PreSleep = &p
	}
	if u.SessionDurationMinutes != nil {
		b.ctx.SessionDurationMinutes = *u.SessionDurationMinutes
	}
	if u.SleepDebt != nil {
		b.ctx.SleepDebt = *u.SleepDebt
	}
	if u.TimeOfNight != nil {
		b.ctx.TimeOfNight = *u.TimeOfNight
	}
}

// Snapshot 返回当前上下文的值拷贝
func (b *Blackboard) Snapshot() Context {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := b.ctx
	if b.ctx.Weather != nil {
		w := *b.ctx.Weather
		snap.Weather = &w
	}
	if b.ctx.PreSleep != nil {
		p := *b.ctx.PreSleep
		snap.PreSleep = &p
	}
	return snap
}

// PostHypothesis 追加一条假设到本周期台账
//
// 非法假设（缺 action、优先级错误等）属于决策源的编码错误，直接拒绝。
func (b *Blackboard) PostHypothesis(h models.Hypothesis) error {
	if err := h.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.hypotheses = append(b.hypotheses, h)
	return nil
}

// Hypotheses 返回本周期台账的拷贝（保持提交顺序）
func (b *Blackboard) Hypotheses() []models.Hypothesis {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.Hypothesis, len(b.hypotheses))
	copy(out, b.hypotheses)
	return out
}

// ClearHypotheses 清空台账（控制器每周期仲裁后调用）
func (b *Blackboard) ClearHypotheses() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hypotheses = b.hypotheses[:0]
}

// Resolve 记录最近一次仲裁结果（供观察者读取）
func (b *Blackboard) Resolve(actions []models.ResolvedAction) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastResolved = make([]models.ResolvedAction, len(actions))
	copy(b.lastResolved, actions)
	b.resolvedAt = time.Now()
}

// LastResolved 返回最近一次仲裁结果的拷贝
func (b *Blackboard) LastResolved() []models.ResolvedAction {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.ResolvedAction, len(b.lastResolved))
	copy(out, b.lastResolved)
	return out
}

// LastResolvedAt 返回最近一次仲裁的时刻（从未仲裁时为零值）
func (b *Blackboard) LastResolvedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolvedAt
}

// Reset 恢复默认状态（会话边界调用）
func (b *Blackboard) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ctx = defaultContext()
	b.hypotheses = nil
	b.lastResolved = nil
	b.resolvedAt = time.Time{}
}
