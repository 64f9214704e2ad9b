// Package controller 提供固定周期的仲裁引擎
//
// 每个周期：按注册顺序调用全部 agent → 读取假设台账 →
// 按动作类型归并为权威动作集 → 对上周期输出限速 → 派发回调。
// 周期串行执行：定时器在上一周期的同步工作完成前不会再次触发。
package controller

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"wisefido-sleepcomfort/internal/agents"
	"wisefido-sleepcomfort/internal/blackboard"
	"wisefido-sleepcomfort/internal/models"
)

// Callbacks 仲裁结果的派发回调（缺失的回调静默跳过，不是错误）
type Callbacks struct {
	OnFanSpeed     func(speed int)
	OnSoundChange  func(noiseType models.NoiseType, volume float64)
	OnInsight      func(message, category string)
	OnWakeSequence func(minutesUntilAlarm int)

	// OnCycleComplete 在一个周期的全部派发完成后触发（观察层发布用）
	OnCycleComplete func(cycleCount int64, actions []models.ResolvedAction)
}

// Controller 仲裁引擎
//
// 状态机：STOPPED → RUNNING（Start 立即跑一个周期并启动定时器），
// RUNNING → STOPPED（Stop 取消定时器并把 lastFanSpeed、cycleCount 归零）。
// Stop 可在任意时刻调用（包括周期中），保证不再有后续周期。
type Controller struct {
	bb        *blackboard.Blackboard
	registry  *agents.Registry
	callbacks Callbacks
	interval  time.Duration
	clock     Clock
	logger    *zap.Logger

	mu           sync.Mutex
	running      bool
	stopCh       chan struct{}
	done         chan struct{}
	lastFanSpeed float64

	cycleCount atomic.Int64
}

// NewController 创建仲裁引擎
//
// clock 传 nil 时使用墙钟。
func NewController(
	bb *blackboard.Blackboard,
	registry *agents.Registry,
	callbacks Callbacks,
	interval time.Duration,
	clock Clock,
	logger *zap.Logger,
) *Controller {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Controller{
		bb:        bb,
		registry:  registry,
		callbacks: callbacks,
		interval:  interval,
		clock:     clock,
		logger:    logger,
	}
}

// Start 启动控制回路（立即跑一个周期，然后按固定间隔重复）
func (c *Controller) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	stopCh := c.stopCh
	done := c.done
	c.mu.Unlock()

	c.logger.Info("Comfort controller started",
		zap.Duration("cycle_interval", c.interval),
	)

	go func() {
		defer close(done)

		c.runCycle()

		ticker := c.clock.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case <-ticker.Chan():
				// 到达此处说明上一周期的同步工作已完成（周期不重叠）
				c.runCycle()
			}
		}
	}()
}

// Stop 停止控制回路（随时可调，幂等）
//
// 取消定时器，等待当前周期收尾，然后归零 lastFanSpeed 与 cycleCount。
// 已派发的异步执行器调用不会被强制中止，其结果由执行器侧丢弃。
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	done := c.done
	c.mu.Unlock()

	<-done

	c.mu.Lock()
	c.lastFanSpeed = 0
	c.mu.Unlock()
	c.cycleCount.Store(0)

	c.logger.Info("Comfort controller stopped")
}

// Running 返回当前是否处于 RUNNING 状态
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// CycleCount 返回已完成的周期数（可观测性计数器）
func (c *Controller) CycleCount() int64 {
	return c.cycleCount.Load()
}

// runCycle 执行一个仲裁周期
func (c *Controller) runCycle() {
	now := c.clock.Now()

	// 1. 按注册顺序调用全部 agent（副作用：向黑板提交假设）
	for _, agent := range c.registry.All() {
		if err := agent.Evaluate(c.bb, now); err != nil {
			c.logger.Error("Agent evaluation failed",
				zap.String("agent_id", agent.ID()),
				zap.Error(err),
			)
			// 继续其他 agent，不中断周期
		}
	}

	// 2. 读取台账并清空（假设不跨周期存活）
	hyps := c.bb.Hypotheses()
	c.bb.ClearHypotheses()

	// 3. 归并 + 限速
	c.mu.Lock()
	lastFan := c.lastFanSpeed
	c.mu.Unlock()

	res := resolve(hyps, lastFan, now)

	c.mu.Lock()
	if !c.running {
		// Stop 发生在周期中：丢弃结果，不做任何状态回写
		c.mu.Unlock()
		return
	}
	if res.hasFan {
		c.lastFanSpeed = res.fanSpeed
	}
	c.mu.Unlock()

	c.bb.Resolve(res.actions)

	// 4. 派发
	for _, action := range res.actions {
		c.dispatch(action)
	}

	count := c.cycleCount.Add(1)
	if c.callbacks.OnCycleComplete != nil {
		c.callbacks.OnCycleComplete(count, res.actions)
	}
	c.logger.Debug("Cycle complete",
		zap.Int64("cycle_count", count),
		zap.Int("hypotheses", len(hyps)),
		zap.Int("resolved_actions", len(res.actions)),
	)
}

// dispatch 按动作类型穷举派发（缺失的回调静默跳过）
func (c *Controller) dispatch(action models.ResolvedAction) {
	switch a := action.Action.(type) {
	case models.SetFanSpeed:
		if c.callbacks.OnFanSpeed != nil {
			c.callbacks.OnFanSpeed(int(math.Round(a.Speed)))
		}
	case models.SetSoundType:
		if c.callbacks.OnSoundChange != nil {
			c.callbacks.OnSoundChange(a.NoiseType, a.Volume)
		}
	case models.LogInsight:
		if c.callbacks.OnInsight != nil {
			c.callbacks.OnInsight(a.Message, a.Category)
		}
	case models.TriggerWakeSequence:
		if c.callbacks.OnWakeSequence != nil {
			c.callbacks.OnWakeSequence(a.MinutesUntilAlarm)
		}
	default:
		// 封闭集合之外的动作类型属于编码错误
		c.logger.Error("Unknown action type in dispatch",
			zap.String("action_type", string(action.Action.ActionType())),
		)
	}
}
