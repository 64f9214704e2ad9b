// Package classifier 提供基于体动强度的睡眠阶段分类
//
// 主要功能：
// - 将高频加速度计采样流折叠为 30 秒的分析窗口（epoch）
// - 按相邻采样差值幅度（Δmagnitude）的窗口均值做阈值分类
// - REM 突发检测：差值幅度超过 0.04g 的采样记录时间戳，
//   相邻两次突发间隔落在 20~90 秒内判定为 burst-positive
// - 上下文平滑：用最近 10 个 epoch 的滚动缓冲否决生理上
//   不可能的阶段跳变（awake→deep、deep→awake、清醒后 REM）
//
// 分类对相同输入与相同缓冲状态是确定性的，任何采样都不会导致错误：
// 非法差值（NaN/Inf）直接从均值中剔除，零差值窗口按 deep 处理。
package classifier

import (
	"math"

	"go.uber.org/zap"

	"wisefido-sleepcomfort/internal/models"
)

const (
	// EpochDurationMs 单个分析窗口的墙钟时长（毫秒）
	EpochDurationMs = 30000

	// ContextBufferSize 平滑用滚动缓冲容量（FIFO，溢出淘汰最旧）
	ContextBufferSize = 10

	// burstThresholdG 突发判定的差值幅度阈值（g）
	burstThresholdG = 0.04

	// REM 突发的间隔窗口（毫秒）
	burstGapMinMs = 20000
	burstGapMaxMs = 90000
)

// EpochClassifier 窗口化睡眠阶段分类器
//
// 单生产者语义：AddReading 由感知消费者串行调用，窗口关闭是同步折叠。
type EpochClassifier struct {
	logger *zap.Logger

	epochStartMs int64
	lastSample   *models.MotionSample
	deltas       []float64
	burstTimesMs []int64

	buffer     []models.EpochResult
	epochIndex int
}

// NewEpochClassifier 创建分类器
func NewEpochClassifier(logger *zap.Logger) *EpochClassifier {
	return &EpochClassifier{
		logger: logger,
	}
}

// AddReading 追加一个加速度计采样
//
// 累积相邻采样差值，直到距窗口起点满 30,000 毫秒时关闭窗口：
// 1. 计算差值均值 avgMovement
// 2. 判定 REM 突发
// 3. 按有序互斥阈值分类（首个命中生效）
// 4. 对上一个缓冲 epoch 做上下文平滑
// 5. 结果入滚动缓冲，递增 epoch 序号，清空窗口累积量
//
// 返回:
//   - *models.EpochResult: 窗口关闭时返回分类结果，否则返回 nil
func (c *EpochClassifier) AddReading(x, y, z float64, timestampMs int64) *models.EpochResult {
	sample := models.MotionSample{X: x, Y: y, Z: z, Timestamp: timestampMs}

	if c.lastSample == nil {
		c.epochStartMs = timestampMs
		c.lastSample = &sample
		return nil
	}

	dx := x - c.lastSample.X
	dy := y - c.lastSample.Y
	dz := z - c.lastSample.Z
	magnitude := math.Sqrt(dx*dx + dy*dy + dz*dz)
	c.lastSample = &sample

	// 非法差值不计入均值（采样永不报错）
	if !math.IsNaN(magnitude) && !math.IsInf(magnitude, 0) {
		c.deltas = append(c.deltas, magnitude)
		if magnitude > burstThresholdG {
			c.burstTimesMs = append(c.burstTimesMs, timestampMs)
		}
	}

	if timestampMs-c.epochStartMs < EpochDurationMs {
		return nil
	}

	result := c.closeEpoch(timestampMs)
	return &result
}

// ContextBuffer 返回滚动缓冲的拷贝（最旧在前）
func (c *EpochClassifier) ContextBuffer() []models.EpochResult {
	out := make([]models.EpochResult, len(c.buffer))
	copy(out, c.buffer)
	return out
}

// Reset 清空全部状态（会话边界调用）
func (c *EpochClassifier) Reset() {
	c.epochStartMs = 0
	c.lastSample = nil
	c.deltas = nil
	c.burstTimesMs = nil
	c.buffer = nil
	c.epochIndex = 0
}

// closeEpoch 关闭当前窗口并产出分类结果
func (c *EpochClassifier) closeEpoch(nowMs int64) models.EpochResult {
	avg := 0.0
	if len(c.deltas) > 0 {
		sum := 0.0
		for _, d := range c.deltas {
			sum += d
		}
		avg = sum / float64(len(c.deltas))
	}

	burst := c.hasBurstPattern()
	stage, confidence := classifyMovement(avg, burst)

	result := models.EpochResult{
		Stage:             stage,
		Confidence:        confidence,
		EpochIndex:        c.epochIndex,
		MovementIntensity: avg,
		Timestamp:         nowMs,
	}

	result = c.smooth(result)

	// 入滚动缓冲（容量 10，FIFO 淘汰）
	c.buffer = append(c.buffer, result)
	if len(c.buffer) > ContextBufferSize {
		c.buffer = c.buffer[1:]
	}

	if c.logger != nil {
		c.logger.Debug("Epoch closed",
			zap.Int("epoch_index", c.epochIndex),
			zap.String("stage", string(result.Stage)),
			zap.Float64("confidence", result.Confidence),
			zap.Float64("avg_movement", avg),
			zap.Bool("burst", burst),
		)
	}

	// 清空窗口累积量
	c.epochIndex++
	c.epochStartMs = nowMs
	c.deltas = c.deltas[:0]
	c.burstTimesMs = c.burstTimesMs[:0]

	return result
}

// hasBurstPattern 判定窗口是否 burst-positive
//
// 至少存在一对相邻突发时间戳，间隔落在 [20000, 90000] 毫秒内。
func (c *EpochClassifier) hasBurstPattern() bool {
	for i := 1; i < len(c.burstTimesMs); i++ {
		gap := c.burstTimesMs[i] - c.burstTimesMs[i-1]
		if gap >= burstGapMinMs && gap <= burstGapMaxMs {
			return true
		}
	}
	return false
}

// classifyMovement 有序互斥阈值分类（首个命中生效）
func classifyMovement(avg float64, burst bool) (models.SleepStage, float64) {
	switch {
	case avg > 0.5:
		return models.StageAwake, math.Min(1, 0.7+(avg-0.5))
	case avg >= 0.1:
		// 0.1 <= avg <= 0.5
		if burst {
			return models.StageREM, 0.6
		}
		return models.StageLight, 0.7
	case avg < 0.03:
		return models.StageDeep, math.Min(1, 0.8+(0.03-avg)*10)
	default:
		// 0.03 <= avg < 0.1
		if burst {
			return models.StageREM, 0.65
		}
		if avg >= 0.03 {
			return models.StageLight, 0.5
		}
		return models.StageLight, 0.4
	}
}

// smooth 上下文平滑：否决生理上不可能的阶段跳变
//
// 无前序 epoch 时跳过（会话第一个窗口直接透传），
// 从第二个窗口起每个结果都相对前序结果做检查。
func (c *EpochClassifier) smooth(result models.EpochResult) models.EpochResult {
	if len(c.buffer) == 0 {
		return result
	}

	prev := c.buffer[len(c.buffer)-1]

	// 规则1：禁止 awake→deep，强制为 light
	if prev.Stage == models.StageAwake && result.Stage == models.StageDeep {
		result.Stage = models.StageLight
		result.Confidence *= 0.8
		c.logSmoothing("awake-to-deep vetoed", result)
	}

	// 规则2：禁止 deep→awake，除非体动强度 >= 0.8
	if prev.Stage == models.StageDeep && result.Stage == models.StageAwake &&
		result.MovementIntensity < 0.8 {
		result.Stage = models.StageLight
		result.Confidence *= 0.7
		c.logSmoothing("deep-to-awake vetoed", result)
	}

	// 规则3：最近 3 个缓冲 epoch 中 >=2 个 awake 时抑制 REM
	if result.Stage == models.StageREM && c.recentAwakeCount(3) >= 2 {
		result.Stage = models.StageLight
		result.Confidence *= 0.6
		c.logSmoothing("rem suppressed after wakefulness", result)
	}

	return result
}

// recentAwakeCount 统计缓冲中最近 n 个 epoch 里 awake 的数量
func (c *EpochClassifier) recentAwakeCount(n int) int {
	count := 0
	start := len(c.buffer) - n
	if start < 0 {
		start = 0
	}
	for _, e := range c.buffer[start:] {
		if e.Stage == models.StageAwake {
			count++
		}
	}
	return count
}

func (c *EpochClassifier) logSmoothing(reason string, result models.EpochResult) {
	if c.logger == nil {
		return
	}
	c.logger.Debug("Context smoothing applied",
		zap.String("reason", reason),
		zap.Int("epoch_index", result.EpochIndex),
		zap.String("stage", string(result.Stage)),
		zap.Float64("confidence", result.Confidence),
	)
}
