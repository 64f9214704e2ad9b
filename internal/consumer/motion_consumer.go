package consumer

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"wisefido-sleepcomfort/internal/blackboard"
	"wisefido-sleepcomfort/internal/classifier"
	"wisefido-sleepcomfort/internal/config"
	"wisefido-sleepcomfort/internal/models"
	"wisefido-sleepcomfort/internal/mqttclient"
)

// Subscriber 订阅端抽象（用于在单元测试中替换 MQTT 客户端）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttclient.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MotionConsumer 体动采样消费者
//
// 订阅两个输入主题：
// - motion：加速度计采样批（JSON 数组），逐个喂给窗口分类器，
//   窗口关闭时把睡眠阶段写入黑板
// - posture：姿态值上报（姿态识别管线在控制器外部），直接写入黑板
//
// 分类器是单生产者语义，handleMotion 内部用互斥锁保证采样串行折叠。
type MotionConsumer struct {
	config     *config.Config
	subscriber Subscriber
	bb         *blackboard.Blackboard
	logger     *zap.Logger

	mu         sync.Mutex
	classifier *classifier.EpochClassifier

	// 窗口关闭回调（观察层发布用，可为 nil）
	onEpoch func(models.EpochResult)
}

// NewMotionConsumer 创建消费者
func NewMotionConsumer(
	cfg *config.Config,
	subscriber Subscriber,
	cls *classifier.EpochClassifier,
	bb *blackboard.Blackboard,
	onEpoch func(models.EpochResult),
	logger *zap.Logger,
) *MotionConsumer {
	return &MotionConsumer{
		config:     cfg,
		subscriber: subscriber,
		bb:         bb,
		classifier: cls,
		onEpoch:    onEpoch,
		logger:     logger,
	}
}

// Start 订阅输入主题
func (c *MotionConsumer) Start() error {
	if err := c.subscriber.Subscribe(c.config.Comfort.MotionTopic, c.config.MQTT.QoS, c.HandleMotionMessage); err != nil {
		return fmt.Errorf("failed to subscribe to motion topic: %w", err)
	}
	if err := c.subscriber.Subscribe(c.config.Comfort.PostureTopic, c.config.MQTT.QoS, c.HandlePostureMessage); err != nil {
		return fmt.Errorf("failed to subscribe to posture topic: %w", err)
	}

	c.logger.Info("Motion consumer started",
		zap.String("motion_topic", c.config.Comfort.MotionTopic),
		zap.String("posture_topic", c.config.Comfort.PostureTopic),
	)
	return nil
}

// Stop 取消订阅
func (c *MotionConsumer) Stop() error {
	if err := c.subscriber.Unsubscribe(c.config.Comfort.MotionTopic, c.config.Comfort.PostureTopic); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	c.logger.Info("Motion consumer stopped")
	return nil
}

// HandleMotionMessage 处理一批加速度计采样
func (c *MotionConsumer) HandleMotionMessage(topic string, payload []byte) error {
	var samples []models.MotionSample
	if err := json.Unmarshal(payload, &samples); err != nil {
		return fmt.Errorf("failed to unmarshal motion samples: %w", err)
	}

	c.mu.Lock()
	var results []models.EpochResult
	for _, s := range samples {
		if result := c.classifier.AddReading(s.X, s.Y, s.Z, s.Timestamp); result != nil {
			results = append(results, *result)
		}
	}
	c.mu.Unlock()

	for _, result := range results {
		stage := result.Stage
		c.bb.UpdateContext(blackboard.ContextUpdate{SleepStage: &stage})

		c.logger.Info("Sleep stage updated",
			zap.String("stage", string(result.Stage)),
			zap.Float64("confidence", result.Confidence),
			zap.Int("epoch_index", result.EpochIndex),
		)

		if c.onEpoch != nil {
			c.onEpoch(result)
		}
	}

	return nil
}

// HandlePostureMessage 处理姿态上报
func (c *MotionConsumer) HandlePostureMessage(topic string, payload []byte) error {
	var msg models.PostureMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal posture message: %w", err)
	}

	posture := msg.Posture
	switch posture {
	case models.PostureSupine, models.PostureProne, models.PostureLeftLateral,
		models.PostureRightLateral, models.PostureFetal, models.PostureUnknown:
	default:
		// 未知取值按 unknown 处理（感知降级，不报错）
		c.logger.Warn("Unrecognized posture value",
			zap.String("posture", string(msg.Posture)),
		)
		posture = models.PostureUnknown
	}

	c.bb.UpdateContext(blackboard.ContextUpdate{Posture: &posture})

	c.logger.Debug("Posture updated",
		zap.String("posture", string(posture)),
	)
	return nil
}
