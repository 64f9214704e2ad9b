package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-sleepcomfort/internal/models"
)

var resolveNow = time.Date(2025, 11, 3, 2, 30, 0, 0, time.UTC)

func hyp(agentID string, action models.Action, conf float64, prio models.Priority) models.Hypothesis {
	return models.Hypothesis{
		AgentID:    agentID,
		Timestamp:  resolveNow,
		Confidence: conf,
		Action:     action,
		Priority:   prio,
		ExpiresAt:  resolveNow.Add(time.Minute),
	}
}

func findAction(t *testing.T, actions []models.ResolvedAction, at models.ActionType) models.ResolvedAction {
	t.Helper()
	for _, a := range actions {
		if a.Action.ActionType() == at {
			return a
		}
	}
	t.Fatalf("no resolved action of type %s", at)
	return models.ResolvedAction{}
}

func TestResolve_EmptyLedger(t *testing.T) {
	res := resolve(nil, 40, resolveNow)

	assert.Empty(t, res.actions)
	assert.False(t, res.hasFan)
	assert.InDelta(t, 40, res.fanSpeed, 1e-9)
}

func TestResolve_FanWeightedMean(t *testing.T) {
	hyps := []models.Hypothesis{
		hyp("thermal-agent", models.SetFanSpeed{Speed: 60}, 0.9, models.PriorityHigh),  // w=2.7
		hyp("posture-agent", models.SetFanSpeed{Speed: 30}, 0.5, models.PriorityMedium), // w=1.0
	}

	res := resolve(hyps, 50, resolveNow)

	require.True(t, res.hasFan)
	fan := findAction(t, res.actions, models.ActionSetFanSpeed)
	// (60*2.7 + 30*1.0) / 3.7 ≈ 51.89，距上周期 50 在 ±5 内
	assert.InDelta(t, 51.8919, fan.Action.(models.SetFanSpeed).Speed, 1e-3)
	assert.ElementsMatch(t, []string{"thermal-agent", "posture-agent"}, fan.SourceAgents)
	// 置信度同样加权：(0.9*2.7 + 0.5*1.0) / 3.7
	assert.InDelta(t, (0.9*2.7+0.5*1.0)/3.7, fan.Confidence, 1e-9)
}

func TestResolve_FanRateLimitedUpward(t *testing.T) {
	hyps := []models.Hypothesis{
		hyp("thermal-agent", models.SetFanSpeed{Speed: 80}, 0.9, models.PriorityCritical),
	}

	res := resolve(hyps, 40, resolveNow)

	fan := findAction(t, res.actions, models.ActionSetFanSpeed)
	assert.InDelta(t, 45, fan.Action.(models.SetFanSpeed).Speed, 1e-9)
	assert.InDelta(t, 45, res.fanSpeed, 1e-9)
}

func TestResolve_FanRateLimitedDownward(t *testing.T) {
	hyps := []models.Hypothesis{
		hyp("posture-agent", models.SetFanSpeed{Speed: 5}, 0.8, models.PriorityHigh),
	}

	res := resolve(hyps, 60, resolveNow)

	fan := findAction(t, res.actions, models.ActionSetFanSpeed)
	assert.InDelta(t, 55, fan.Action.(models.SetFanSpeed).Speed, 1e-9)
}

func TestResolve_FanClampedToRange(t *testing.T) {
	low := resolve([]models.Hypothesis{
		hyp("a", models.SetFanSpeed{Speed: 0}, 0.9, models.PriorityHigh),
		hyp("b", models.AdjustFanDelta{Delta: -50}, 0.9, models.PriorityHigh),
	}, 2, resolveNow)
	fan := findAction(t, low.actions, models.ActionSetFanSpeed)
	assert.InDelta(t, 0, fan.Action.(models.SetFanSpeed).Speed, 1e-9)

	high := resolve([]models.Hypothesis{
		hyp("a", models.SetFanSpeed{Speed: 200}, 0.9, models.PriorityHigh),
	}, 98, resolveNow)
	fan = findAction(t, high.actions, models.ActionSetFanSpeed)
	assert.InDelta(t, 100, fan.Action.(models.SetFanSpeed).Speed, 1e-9)
}

func TestResolve_DeltaOnlyAppliesToLastOutput(t *testing.T) {
	hyps := []models.Hypothesis{
		hyp("energy-agent", models.AdjustFanDelta{Delta: 15}, 0.8, models.PriorityHigh),
	}

	res := resolve(hyps, 40, resolveNow)

	fan := findAction(t, res.actions, models.ActionSetFanSpeed)
	// 40+15=55，限速到 45
	assert.InDelta(t, 45, fan.Action.(models.SetFanSpeed).Speed, 1e-9)
	assert.InDelta(t, 0.8, fan.Confidence, 1e-9)
}

func TestResolve_DeltaStacksOnWeightedMean(t *testing.T) {
	hyps := []models.Hypothesis{
		hyp("posture-agent", models.SetFanSpeed{Speed: 42}, 0.8, models.PriorityHigh),
		hyp("energy-agent", models.AdjustFanDelta{Delta: 2}, 0.8, models.PriorityHigh),
	}

	res := resolve(hyps, 41, resolveNow)

	fan := findAction(t, res.actions, models.ActionSetFanSpeed)
	assert.InDelta(t, 44, fan.Action.(models.SetFanSpeed).Speed, 1e-9)
	assert.ElementsMatch(t, []string{"posture-agent", "energy-agent"}, fan.SourceAgents)
}

func TestResolve_ZeroConfidenceHypothesesHoldLastOutput(t *testing.T) {
	hyps := []models.Hypothesis{
		hyp("thermal-agent", models.SetFanSpeed{Speed: 80}, 0, models.PriorityHigh),
		hyp("posture-agent", models.SetFanSpeed{Speed: 20}, 0, models.PriorityMedium),
	}

	res := resolve(hyps, 40, resolveNow)

	// 权重和为 0：无有效信号，风速不向 0 漂移
	fan := findAction(t, res.actions, models.ActionSetFanSpeed)
	assert.InDelta(t, 40, fan.Action.(models.SetFanSpeed).Speed, 1e-9)
	assert.InDelta(t, 40, res.fanSpeed, 1e-9)
}

func TestResolve_ExpiredHypothesesIgnored(t *testing.T) {
	expired := hyp("thermal-agent", models.SetFanSpeed{Speed: 90}, 0.9, models.PriorityCritical)
	expired.ExpiresAt = resolveNow.Add(-time.Second)

	res := resolve([]models.Hypothesis{expired}, 40, resolveNow)

	assert.Empty(t, res.actions)
	assert.False(t, res.hasFan)
}

func TestResolve_SoundSingleWinnerByWeightedScore(t *testing.T) {
	hyps := []models.Hypothesis{
		hyp("sound-agent", models.SetSoundType{NoiseType: models.NoisePink, Volume: 0.25}, 0.7, models.PriorityMedium),  // 1.4
		hyp("other-agent", models.SetSoundType{NoiseType: models.NoiseBrown, Volume: 0.30}, 0.5, models.PriorityCritical), // 2.0
	}

	res := resolve(hyps, 0, resolveNow)

	sound := findAction(t, res.actions, models.ActionSetSoundType)
	assert.Equal(t, models.NoiseBrown, sound.Action.(models.SetSoundType).NoiseType)
	assert.Equal(t, []string{"other-agent"}, sound.SourceAgents)
}

func TestResolve_SoundTieKeepsFirstSeen(t *testing.T) {
	hyps := []models.Hypothesis{
		hyp("sound-agent", models.SetSoundType{NoiseType: models.NoisePink, Volume: 0.25}, 0.7, models.PriorityMedium),
		hyp("other-agent", models.SetSoundType{NoiseType: models.NoiseWhite, Volume: 0.40}, 0.7, models.PriorityMedium),
	}

	res := resolve(hyps, 0, resolveNow)

	sound := findAction(t, res.actions, models.ActionSetSoundType)
	assert.Equal(t, models.NoisePink, sound.Action.(models.SetSoundType).NoiseType)
}

func TestResolve_WakeWinnerByConfidence(t *testing.T) {
	hyps := []models.Hypothesis{
		hyp("energy-agent", models.TriggerWakeSequence{MinutesUntilAlarm: 30}, 0.8, models.PriorityHigh),
		hyp("other-agent", models.TriggerWakeSequence{MinutesUntilAlarm: 15}, 0.9, models.PriorityLow),
	}

	res := resolve(hyps, 0, resolveNow)

	wake := findAction(t, res.actions, models.ActionTriggerWakeSequence)
	assert.Equal(t, 15, wake.Action.(models.TriggerWakeSequence).MinutesUntilAlarm)
}

func TestResolve_InsightsPassThroughIndividually(t *testing.T) {
	hyps := []models.Hypothesis{
		hyp("energy-agent", models.LogInsight{Message: "sleep debt above 2h", Category: "sleep_debt"}, 0.9, models.PriorityMedium),
		hyp("energy-agent", models.LogInsight{Message: "sleep debt critical", Category: "sleep_debt"}, 0.9, models.PriorityCritical),
	}

	res := resolve(hyps, 0, resolveNow)

	count := 0
	for _, a := range res.actions {
		if a.Action.ActionType() == models.ActionLogInsight {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestResolve_ZeroExpiryNeverExpires(t *testing.T) {
	h := hyp("thermal-agent", models.SetFanSpeed{Speed: 42}, 0.8, models.PriorityHigh)
	h.ExpiresAt = time.Time{}

	res := resolve([]models.Hypothesis{h}, 40, resolveNow)

	assert.True(t, res.hasFan)
}
