package agents

import (
	"fmt"
	"time"

	"wisefido-sleepcomfort/internal/blackboard"
	"wisefido-sleepcomfort/internal/models"
)

const postureHypothesisTTL = 60 * time.Second

// postureBaseSpeed 各睡姿的基础风速（百分比）
var postureBaseSpeed = map[models.Posture]float64{
	models.PostureSupine:       55,
	models.PostureLeftLateral:  40,
	models.PostureRightLateral: 40,
	models.PostureProne:        25,
	models.PostureFetal:        30,
	models.PostureUnknown:      35,
}

// stageSpeedModifier 各睡眠阶段的风速修正
var stageSpeedModifier = map[models.SleepStage]float64{
	models.StageAwake: 0,
	models.StageLight: -5,
	models.StageDeep:  -10,
	models.StageREM:   +10,
}

// PostureAgent 睡姿决策源
//
// speed = clamp(postureBaseSpeed[posture] + stageModifier[stage], 0, 100)
// 已知睡姿置信度 0.85，unknown 降为 0.3。
type PostureAgent struct{}

// NewPostureAgent 创建睡姿 agent
func NewPostureAgent() *PostureAgent {
	return &PostureAgent{}
}

// ID 实现 Agent 接口
func (a *PostureAgent) ID() string { return "posture-agent" }

// Evaluate 实现 Agent 接口
func (a *PostureAgent) Evaluate(bb *blackboard.Blackboard, now time.Time) error {
	ctx := bb.Snapshot()

	base, ok := postureBaseSpeed[ctx.CurrentPosture]
	if !ok {
		base = postureBaseSpeed[models.PostureUnknown]
	}
	speed := clamp(base+stageSpeedModifier[ctx.CurrentSleepStage], 0, 100)

	confidence := 0.85
	if ctx.CurrentPosture == models.PostureUnknown {
		confidence = 0.3
	}

	return bb.PostHypothesis(models.Hypothesis{
		AgentID:    a.ID(),
		Timestamp:  now,
		Confidence: confidence,
		Action:     models.SetFanSpeed{Speed: speed},
		Reasoning: fmt.Sprintf("posture %s base %.0f, stage %s modifier %+.0f",
			ctx.CurrentPosture, base, ctx.CurrentSleepStage, stageSpeedModifier[ctx.CurrentSleepStage]),
		Priority:  models.PriorityHigh,
		ExpiresAt: now.Add(postureHypothesisTTL),
	})
}
