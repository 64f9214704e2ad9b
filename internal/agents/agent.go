// Package agents 提供舒适控制的决策源（agent）与注册表
//
// 每个 agent 是对黑板的一次只读评估加若干条假设提交，
// 每周期运行一次，同周期内各 agent 相互独立（允许互相矛盾的假设）。
// agent 通过显式组合注册到注册表，控制器对注册了哪些 agent 零编译期知识。
package agents

import (
	"time"

	"wisefido-sleepcomfort/internal/blackboard"
)

// Agent 决策源接口
type Agent interface {
	// ID 返回 agent 的稳定标识（注册表按此去重）
	ID() string

	// Evaluate 读取黑板快照并提交假设
	//
	// now 由控制器注入（统一周期时刻，便于确定性测试）。
	// 返回的错误只记录日志，不中断周期。
	Evaluate(bb *blackboard.Blackboard, now time.Time) error
}

// clamp 将 v 限制到 [lo, hi]
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
