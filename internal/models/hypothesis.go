package models

import (
	"fmt"
	"time"
)

// Priority 假设优先级
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Weight 返回仲裁时使用的优先级权重
func (p Priority) Weight() float64 {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Valid 检查优先级取值是否合法
func (p Priority) Valid() bool {
	return p.Weight() > 0
}

// NoiseType 环境音类型
type NoiseType string

const (
	NoiseWhite NoiseType = "white"
	NoisePink  NoiseType = "pink"
	NoiseBrown NoiseType = "brown"
)

// ActionType 动作类型
type ActionType string

const (
	ActionSetFanSpeed         ActionType = "set_fan_speed"
	ActionAdjustFanDelta      ActionType = "adjust_fan_delta"
	ActionSetSoundType        ActionType = "set_sound_type"
	ActionLogInsight          ActionType = "log_insight"
	ActionTriggerWakeSequence ActionType = "trigger_wake_sequence"
)

// Action 动作变体（封闭集合，控制器按类型穷举匹配）
type Action interface {
	ActionType() ActionType
}

// SetFanSpeed 设置风扇转速（百分比）
type SetFanSpeed struct {
	Speed float64 `json:"speed"` // [0,100]
}

func (SetFanSpeed) ActionType() ActionType { return ActionSetFanSpeed }

// AdjustFanDelta 在仲裁结果上叠加风速增量
type AdjustFanDelta struct {
	Delta float64 `json:"delta"`
}

func (AdjustFanDelta) ActionType() ActionType { return ActionAdjustFanDelta }

// SetSoundType 设置环境音类型与音量
type SetSoundType struct {
	NoiseType NoiseType `json:"noise_type"`
	Volume    float64   `json:"volume"` // [0,1]
}

func (SetSoundType) ActionType() ActionType { return ActionSetSoundType }

// LogInsight 记录一条洞察（透传给观察层，不参与合并）
type LogInsight struct {
	Message  string `json:"message"`
	Category string `json:"category"`
}

func (LogInsight) ActionType() ActionType { return ActionLogInsight }

// TriggerWakeSequence 触发唤醒序列
type TriggerWakeSequence struct {
	MinutesUntilAlarm int `json:"minutes_until_alarm"`
}

func (TriggerWakeSequence) ActionType() ActionType { return ActionTriggerWakeSequence }

// Hypothesis 决策源在一个周期内提交的动作假设
//
// 生命周期：agent 每周期创建，控制器同周期读取一次，随后台账清空。
// 过期的假设（ExpiresAt 早于仲裁时刻）不参与仲裁。
type Hypothesis struct {
	AgentID    string
	Timestamp  time.Time
	Confidence float64 // [0,1]
	Action     Action
	Reasoning  string
	Priority   Priority
	ExpiresAt  time.Time
}

// Validate 检查假设是否构造合法（非法假设属于编码错误，在提交时拒绝）
func (h *Hypothesis) Validate() error {
	if h.AgentID == "" {
		return fmt.Errorf("hypothesis missing agent id")
	}
	if h.Action == nil {
		return fmt.Errorf("hypothesis from %s missing action", h.AgentID)
	}
	if !h.Priority.Valid() {
		return fmt.Errorf("hypothesis from %s has invalid priority: %q", h.AgentID, h.Priority)
	}
	if h.Confidence < 0 || h.Confidence > 1 {
		return fmt.Errorf("hypothesis from %s has confidence out of range: %f", h.AgentID, h.Confidence)
	}
	return nil
}

// ResolvedAction 控制器仲裁后的权威动作
//
// 每个动作类型每周期最多产生一个（LOG_INSIGHT 除外，逐条透传）。
type ResolvedAction struct {
	Action       Action
	SourceAgents []string
	Confidence   float64
	Timestamp    time.Time
}
