package controller

import (
	"math"
	"time"

	"wisefido-sleepcomfort/internal/models"
)

// maxFanStepPerCycle 相邻周期间风速最大变化量（限速）
const maxFanStepPerCycle = 5

// resolution 一个周期的仲裁结果
type resolution struct {
	actions  []models.ResolvedAction
	fanSpeed float64 // 限速后的新 lastFanSpeed（无风速假设时等于入参）
	hasFan   bool
}

// resolve 把本周期的假设台账归并为权威动作集
//
// 仲裁规则：
// - 先过滤已过期的假设（ExpiresAt 早于 now 的不参与聚合）
// - SET_FAN_SPEED：按 confidence × priorityWeight 加权平均，
//   再叠加全部 ADJUST_FAN_DELTA；只有增量没有基准时，增量作用在上周期输出上
// - 风速先限速到 lastFanSpeed ±5，再截断到 [0,100]
// - SET_SOUND_TYPE：单一胜者 = priorityWeight × confidence 最大（平局先见者胜）
// - TRIGGER_WAKE_SEQUENCE：单一胜者 = confidence 最大（平局先见者胜）
// - LOG_INSIGHT：逐条透传，不合并
// - 某类型无假设时直接省略，不是错误
func resolve(hyps []models.Hypothesis, lastFanSpeed float64, now time.Time) resolution {
	var (
		fanSpeeds []models.Hypothesis
		fanDeltas []models.Hypothesis
		sounds    []models.Hypothesis
		wakes     []models.Hypothesis
		insights  []models.Hypothesis
	)

	for _, h := range hyps {
		// TTL 过滤：过期假设不参与仲裁
		if !h.ExpiresAt.IsZero() && h.ExpiresAt.Before(now) {
			continue
		}
		switch h.Action.ActionType() {
		case models.ActionSetFanSpeed:
			fanSpeeds = append(fanSpeeds, h)
		case models.ActionAdjustFanDelta:
			fanDeltas = append(fanDeltas, h)
		case models.ActionSetSoundType:
			sounds = append(sounds, h)
		case models.ActionTriggerWakeSequence:
			wakes = append(wakes, h)
		case models.ActionLogInsight:
			insights = append(insights, h)
		}
	}

	res := resolution{fanSpeed: lastFanSpeed}

	if fan, ok := resolveFanSpeed(fanSpeeds, fanDeltas, lastFanSpeed, now); ok {
		res.actions = append(res.actions, fan)
		res.fanSpeed = fan.Action.(models.SetFanSpeed).Speed
		res.hasFan = true
	}

	if sound, ok := pickByScore(sounds, func(h models.Hypothesis) float64 {
		return h.Priority.Weight() * h.Confidence
	}, now); ok {
		res.actions = append(res.actions, sound)
	}

	// 洞察逐条透传
	for _, h := range insights {
		res.actions = append(res.actions, models.ResolvedAction{
			Action:       h.Action,
			SourceAgents: []string{h.AgentID},
			Confidence:   h.Confidence,
			Timestamp:    now,
		})
	}

	if wake, ok := pickByScore(wakes, func(h models.Hypothesis) float64 {
		return h.Confidence
	}, now); ok {
		res.actions = append(res.actions, wake)
	}

	return res
}

// resolveFanSpeed 加权平均 + 增量叠加 + 限速 + 截断
func resolveFanSpeed(speeds, deltas []models.Hypothesis, lastFanSpeed float64, now time.Time) (models.ResolvedAction, bool) {
	if len(speeds) == 0 && len(deltas) == 0 {
		return models.ResolvedAction{}, false
	}

	var (
		target       float64
		sources      []string
		confidence   float64
		weightSum    float64
		weightedConf float64
	)

	if len(speeds) > 0 {
		weightedSpeed := 0.0
		for _, h := range speeds {
			w := h.Confidence * h.Priority.Weight()
			weightedSpeed += h.Action.(models.SetFanSpeed).Speed * w
			weightedConf += h.Confidence * w
			weightSum += w
			sources = append(sources, h.AgentID)
		}
		if weightSum > 0 {
			target = weightedSpeed / weightSum
			confidence = weightedConf / weightSum
		} else {
			// 全部假设置信度为 0：无有效信号，基准保持上周期输出
			target = lastFanSpeed
		}
	} else {
		// 只有增量假设：作用在上周期的输出上
		target = lastFanSpeed
	}

	for _, h := range deltas {
		target += h.Action.(models.AdjustFanDelta).Delta
		sources = append(sources, h.AgentID)
		if confidence == 0 {
			confidence = h.Confidence
		}
	}

	// 限速：相邻周期最多变化 5，再截断到 [0,100]
	if target > lastFanSpeed+maxFanStepPerCycle {
		target = lastFanSpeed + maxFanStepPerCycle
	} else if target < lastFanSpeed-maxFanStepPerCycle {
		target = lastFanSpeed - maxFanStepPerCycle
	}
	target = math.Min(100, math.Max(0, target))

	return models.ResolvedAction{
		Action:       models.SetFanSpeed{Speed: target},
		SourceAgents: sources,
		Confidence:   confidence,
		Timestamp:    now,
	}, true
}

// pickByScore 单一胜者选择（严格大于才换人，保证平局先见者胜）
func pickByScore(hyps []models.Hypothesis, score func(models.Hypothesis) float64, now time.Time) (models.ResolvedAction, bool) {
	if len(hyps) == 0 {
		return models.ResolvedAction{}, false
	}

	best := hyps[0]
	bestScore := score(best)
	for _, h := range hyps[1:] {
		if s := score(h); s > bestScore {
			best = h
			bestScore = s
		}
	}

	return models.ResolvedAction{
		Action:       best.Action,
		SourceAgents: []string{best.AgentID},
		Confidence:   best.Confidence,
		Timestamp:    now,
	}, true
}
