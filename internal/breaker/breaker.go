// Package breaker 提供三态熔断器
//
// 包裹对外部执行器/服务（风扇驱动、天气拉取）的每一次调用：
// 连续失败达到阈值后快速拒绝，避免级联重试拖垮控制周期。
//
// 状态转移（仅允许）：
//   CLOSED → OPEN      连续失败达到阈值
//   OPEN → HALF_OPEN   距最后一次失败超过 resetTimeout 后的下一次调用作为探针放行
//   HALF_OPEN → CLOSED 探针成功（失败计数归零）
//   HALF_OPEN → OPEN   探针失败（刷新 lastFailureTime）
package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen 熔断器处于 OPEN 状态时的快速拒绝错误（不会调用被包裹函数）
var ErrOpen = errors.New("circuit breaker is open")

// State 熔断器状态
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// StateChangeFunc 状态转移观察回调
//
// 在持有内部锁时同步触发，回调内不要再调用本熔断器的方法。
type StateChangeFunc func(from, to State)

// CircuitBreaker 三态熔断器（并发安全）
type CircuitBreaker struct {
	name             string
	failureThreshold int
	resetTimeout     time.Duration
	onStateChange    StateChangeFunc

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time

	// 测试可注入的时间源
	now func() time.Time
}

// New 创建熔断器（初始 CLOSED）
//
// name 用于日志/观察区分依赖；onStateChange 可为 nil。
func New(name string, failureThreshold int, resetTimeout time.Duration, onStateChange StateChangeFunc) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		onStateChange:    onStateChange,
		state:            StateClosed,
		now:              time.Now,
	}
}

// Execute 通过熔断器执行 fn
//
// OPEN 状态下直接返回 ErrOpen，不调用 fn；
// 超时窗口过后第一次调用转入 HALF_OPEN 作为探针放行。
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.resetTimeout {
			cb.mu.Unlock()
			return ErrOpen
		}
		// 超时已过：转入 HALF_OPEN，本次调用作为探针
		cb.transitionTo(StateHalfOpen)
	case StateClosed, StateHalfOpen:
		// 放行
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

// State 返回当前状态
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FailureCount 返回当前连续失败计数
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// Name 返回熔断器标识
func (cb *CircuitBreaker) Name() string { return cb.name }

// recordSuccess 调用成功（须持锁调用）
func (cb *CircuitBreaker) recordSuccess() {
	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		// 探针成功：恢复 CLOSED 并清零失败计数
		cb.failureCount = 0
		cb.transitionTo(StateClosed)
	}
}

// recordFailure 调用失败（须持锁调用）
func (cb *CircuitBreaker) recordFailure() {
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		// 探针失败：回到 OPEN
		cb.transitionTo(StateOpen)
	}
}

// transitionTo 状态转移（须持锁调用）
func (cb *CircuitBreaker) transitionTo(next State) {
	if cb.state == next {
		return
	}
	from := cb.state
	cb.state = next
	if cb.onStateChange != nil {
		cb.onStateChange(from, next)
	}
}
