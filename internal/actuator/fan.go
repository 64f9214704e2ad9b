// Package actuator 提供执行器适配器（风扇、混音器）
//
// 适配器通过 MQTT 命令主题驱动物理/模拟设备，
// 重试与退避策略由适配器自持，熔断由服务层包裹。
package actuator

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wisefido-sleepcomfort/internal/models"
)

// Publisher 发布端抽象（用于在单元测试中替换 MQTT 客户端）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// FanCommand 风扇命令消息
type FanCommand struct {
	Speed     int   `json:"speed"` // [0,100]
	Timestamp int64 `json:"timestamp"`
}

// FanDriver 风扇执行器适配器
//
// SetSpeed 失败时按固定间隔重试（次数与间隔可配），
// 重试耗尽后把错误返回给调用方（由熔断器计数）。
type FanDriver struct {
	publisher Publisher
	topic     string
	qos       byte
	retries   int
	retryWait time.Duration
	logger    *zap.Logger
}

// NewFanDriver 创建风扇适配器
func NewFanDriver(publisher Publisher, topic string, qos byte, retries int, retryWait time.Duration, logger *zap.Logger) *FanDriver {
	return &FanDriver{
		publisher: publisher,
		topic:     topic,
		qos:       qos,
		retries:   retries,
		retryWait: retryWait,
		logger:    logger,
	}
}

// SetSpeed 下发风速命令
func (d *FanDriver) SetSpeed(speed int) error {
	if speed < 0 || speed > 100 {
		return fmt.Errorf("fan speed out of range: %d", speed)
	}

	payload, err := json.Marshal(FanCommand{
		Speed:     speed,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal fan command: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(d.retryWait)
		}
		if lastErr = d.publisher.Publish(d.topic, d.qos, false, payload); lastErr == nil {
			d.logger.Debug("Fan speed command published",
				zap.Int("speed", speed),
				zap.Int("attempt", attempt),
			)
			return nil
		}
		d.logger.Warn("Fan command publish failed",
			zap.Int("speed", speed),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
	}

	return fmt.Errorf("failed to publish fan command after %d attempts: %w", d.retries+1, lastErr)
}

// SoundCommand 混音器命令消息
type SoundCommand struct {
	NoiseType models.NoiseType `json:"noise_type"`
	Volume    float64          `json:"volume"` // [0,1]
	Timestamp int64            `json:"timestamp"`
}

// SoundDriver 混音器执行器适配器（音频合成在控制器外部）
type SoundDriver struct {
	publisher Publisher
	topic     string
	qos       byte
	logger    *zap.Logger
}

// NewSoundDriver 创建混音器适配器
func NewSoundDriver(publisher Publisher, topic string, qos byte, logger *zap.Logger) *SoundDriver {
	return &SoundDriver{
		publisher: publisher,
		topic:     topic,
		qos:       qos,
		logger:    logger,
	}
}

// SetSound 下发环境音命令
func (d *SoundDriver) SetSound(noiseType models.NoiseType, volume float64) error {
	if volume < 0 || volume > 1 {
		return fmt.Errorf("sound volume out of range: %f", volume)
	}

	payload, err := json.Marshal(SoundCommand{
		NoiseType: noiseType,
		Volume:    volume,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sound command: %w", err)
	}

	if err := d.publisher.Publish(d.topic, d.qos, false, payload); err != nil {
		return fmt.Errorf("failed to publish sound command: %w", err)
	}

	d.logger.Debug("Sound command published",
		zap.String("noise_type", string(noiseType)),
		zap.Float64("volume", volume),
	)
	return nil
}
