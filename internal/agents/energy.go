package agents

import (
	"fmt"
	"time"

	"wisefido-sleepcomfort/internal/blackboard"
	"wisefido-sleepcomfort/internal/models"
)

const (
	energyHypothesisTTL = 60 * time.Second

	// 触发唤醒序列所需的最短会话时长（分钟）
	wakeMinSessionMinutes = 360

	// 唤醒提前量（分钟）
	wakeLeadMinutes = 30
)

// EnergyAgent 精力管理决策源
//
// pre-wake 时段且会话时长 >=360 分钟时触发唤醒序列（提前 30 分钟），
// 并提交 +15 的风速增量帮助自然清醒；
// 睡眠负债 >2 小时时记录洞察（>5 小时升级为 critical）。
type EnergyAgent struct{}

// NewEnergyAgent 创建精力管理 agent
func NewEnergyAgent() *EnergyAgent {
	return &EnergyAgent{}
}

// ID 实现 Agent 接口
func (a *EnergyAgent) ID() string { return "energy-agent" }

// Evaluate 实现 Agent 接口
func (a *EnergyAgent) Evaluate(bb *blackboard.Blackboard, now time.Time) error {
	ctx := bb.Snapshot()

	if ctx.TimeOfNight == models.NightPreWake &&
		ctx.SessionDurationMinutes >= wakeMinSessionMinutes {
		if err := bb.PostHypothesis(models.Hypothesis{
			AgentID:    a.ID(),
			Timestamp:  now,
			Confidence: 0.8,
			Action:     models.TriggerWakeSequence{MinutesUntilAlarm: wakeLeadMinutes},
			Reasoning: fmt.Sprintf("pre-wake after %.0f minutes of sleep",
				ctx.SessionDurationMinutes),
			Priority:  models.PriorityHigh,
			ExpiresAt: now.Add(energyHypothesisTTL),
		}); err != nil {
			return err
		}

		if err := bb.PostHypothesis(models.Hypothesis{
			AgentID:    a.ID(),
			Timestamp:  now,
			Confidence: 0.8,
			Action:     models.AdjustFanDelta{Delta: 15},
			Reasoning:  "increase airflow toward wake time",
			Priority:   models.PriorityHigh,
			ExpiresAt:  now.Add(energyHypothesisTTL),
		}); err != nil {
			return err
		}
	}

	if ctx.SleepDebt > 2 {
		priority := models.PriorityMedium
		if ctx.SleepDebt > 5 {
			priority = models.PriorityCritical
		}
		if err := bb.PostHypothesis(models.Hypothesis{
			AgentID:    a.ID(),
			Timestamp:  now,
			Confidence: 0.9,
			Action: models.LogInsight{
				Message: fmt.Sprintf("accumulated sleep debt is %.1f hours; consider an earlier bedtime",
					ctx.SleepDebt),
				Category: "sleep_debt",
			},
			Reasoning: fmt.Sprintf("sleep debt %.1fh exceeds 2h threshold", ctx.SleepDebt),
			Priority:  priority,
			ExpiresAt: now.Add(energyHypothesisTTL),
		}); err != nil {
			return err
		}
	}

	return nil
}
