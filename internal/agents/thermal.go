package agents

import (
	"fmt"
	"time"

	"wisefido-sleepcomfort/internal/blackboard"
	"wisefido-sleepcomfort/internal/models"
)

const (
	thermalHypothesisTTL = 300 * time.Second

	// 无天气数据时的保守基础风速
	thermalFallbackSpeed = 40
)

// circadianOffset 按小时查表的昼夜节律偏移（×10 后叠加到风速）
//
// 核心体温在凌晨 04:00 附近最低，对应最大负偏移 -1.1。
// 未列出的小时偏移为 0。
var circadianOffset = map[int]float64{
	20: -0.1,
	21: -0.2,
	22: -0.3,
	23: -0.45,
	0:  -0.6,
	1:  -0.75,
	2:  -0.9,
	3:  -1.0,
	4:  -1.1,
	5:  -1.05,
	6:  -0.9,
	7:  -0.6,
	8:  -0.3,
	9:  -0.1,
}

// ThermalAgent 体感温度决策源
//
// 由 feels-like 温度的五个区间得到基础风速（>32→80, >28→60, >24→40, >20→20, 其余→5），
// 湿度 >75% 追加 +10，再叠加昼夜节律偏移（查表值 ×10）。
// 无天气数据时降级为固定 40 + 节律偏移，置信度从 0.75 降为 0.5。
// 副作用：按小时把夜间时段（early/mid/late/pre-wake）写入黑板。
type ThermalAgent struct{}

// NewThermalAgent 创建温感 agent
func NewThermalAgent() *ThermalAgent {
	return &ThermalAgent{}
}

// ID 实现 Agent 接口
func (a *ThermalAgent) ID() string { return "thermal-agent" }

// Evaluate 实现 Agent 接口
func (a *ThermalAgent) Evaluate(bb *blackboard.Blackboard, now time.Time) error {
	ctx := bb.Snapshot()
	hour := now.Hour()

	// 副作用：写入夜间时段
	ton := bucketTimeOfNight(hour)
	bb.UpdateContext(blackboard.ContextUpdate{TimeOfNight: &ton})

	offset := circadianOffset[hour] * 10

	var (
		speed      float64
		confidence float64
		priority   = models.PriorityMedium
		reasoning  string
	)

	if ctx.Weather != nil {
		base := thermalBandSpeed(ctx.Weather.FeelsLike)
		speed = base
		if ctx.Weather.Humidity > 75 {
			speed += 10
		}
		speed = clamp(speed+offset, 0, 100)
		confidence = 0.75
		if ctx.Weather.FeelsLike > 32 {
			priority = models.PriorityCritical
		}
		reasoning = fmt.Sprintf("feels-like %.1fC band %.0f, humidity %.0f%%, circadian %+.1f at %02d:00",
			ctx.Weather.FeelsLike, base, ctx.Weather.Humidity, offset, hour)
	} else {
		// 感知降级：无天气数据，保守默认值 + 节律偏移
		speed = clamp(thermalFallbackSpeed+offset, 0, 100)
		confidence = 0.5
		reasoning = fmt.Sprintf("no weather data, fallback %d with circadian %+.1f at %02d:00",
			thermalFallbackSpeed, offset, hour)
	}

	return bb.PostHypothesis(models.Hypothesis{
		AgentID:    a.ID(),
		Timestamp:  now,
		Confidence: confidence,
		Action:     models.SetFanSpeed{Speed: speed},
		Reasoning:  reasoning,
		Priority:   priority,
		ExpiresAt:  now.Add(thermalHypothesisTTL),
	})
}

// thermalBandSpeed 体感温度五段映射
func thermalBandSpeed(feelsLike float64) float64 {
	switch {
	case feelsLike > 32:
		return 80
	case feelsLike > 28:
		return 60
	case feelsLike > 24:
		return 40
	case feelsLike > 20:
		return 20
	default:
		return 5
	}
}

// bucketTimeOfNight 小时 → 夜间时段
func bucketTimeOfNight(hour int) models.TimeOfNight {
	switch {
	case hour >= 21 || hour < 1:
		return models.NightEarly
	case hour < 4:
		return models.NightMid
	case hour < 6:
		return models.NightLate
	case hour < 10:
		return models.NightPreWake
	default:
		return models.NightEarly
	}
}
