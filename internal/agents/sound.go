package agents

import (
	"fmt"
	"time"

	"wisefido-sleepcomfort/internal/blackboard"
	"wisefido-sleepcomfort/internal/models"
)

const soundHypothesisTTL = 120 * time.Second

// SoundAgent 环境音决策源
//
// 睡眠阶段 → {噪声类型, 基础音量}：
//   awake: white 0.40（睡前压力 >3 时改 brown 0.40）
//   light: pink 0.35
//   deep:  pink 0.25
//   rem:   brown 0.30
// 修正：awake 且咖啡因 >100mg 时音量 +0.10（上限 0.60）；
// pre-wake 时段音量 -0.15（下限 0.10）。
type SoundAgent struct{}

// NewSoundAgent 创建环境音 agent
func NewSoundAgent() *SoundAgent {
	return &SoundAgent{}
}

// ID 实现 Agent 接口
func (a *SoundAgent) ID() string { return "sound-agent" }

// Evaluate 实现 Agent 接口
func (a *SoundAgent) Evaluate(bb *blackboard.Blackboard, now time.Time) error {
	ctx := bb.Snapshot()

	noise, volume := baseSoundFor(ctx)

	// 咖啡因修正：清醒且摄入 >100mg 时加大掩蔽音量
	if ctx.CurrentSleepStage == models.StageAwake &&
		ctx.PreSleep != nil && ctx.PreSleep.CaffeineMg > 100 {
		volume = clamp(volume+0.10, 0, 0.60)
	}

	// 临醒时段降低音量，避免干扰自然醒
	if ctx.TimeOfNight == models.NightPreWake {
		volume = clamp(volume-0.15, 0.10, 1)
	}

	return bb.PostHypothesis(models.Hypothesis{
		AgentID:    a.ID(),
		Timestamp:  now,
		Confidence: 0.7,
		Action:     models.SetSoundType{NoiseType: noise, Volume: volume},
		Reasoning: fmt.Sprintf("stage %s -> %s %.2f (time_of_night %s)",
			ctx.CurrentSleepStage, noise, volume, ctx.TimeOfNight),
		Priority:  models.PriorityMedium,
		ExpiresAt: now.Add(soundHypothesisTTL),
	})
}

// baseSoundFor 按睡眠阶段选择噪声类型与基础音量
func baseSoundFor(ctx blackboard.Context) (models.NoiseType, float64) {
	switch ctx.CurrentSleepStage {
	case models.StageAwake:
		if ctx.PreSleep != nil && ctx.PreSleep.StressLevel > 3 {
			return models.NoiseBrown, 0.40
		}
		return models.NoiseWhite, 0.40
	case models.StageLight:
		return models.NoisePink, 0.35
	case models.StageDeep:
		return models.NoisePink, 0.25
	case models.StageREM:
		return models.NoiseBrown, 0.30
	default:
		return models.NoiseWhite, 0.40
	}
}
