// Package publisher 把控制回路的可观测输出写入 Redis
//
// 两个出口（均为观察层接口，不是控制回路状态的持久化）：
// - 仲裁动作与洞察追加到 Redis Stream，供展示层/报表层消费
// - 当前舒适状态写入带 TTL 的 realtime key，供卡片式 UI 轮询
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-sleepcomfort/internal/config"
	"wisefido-sleepcomfort/internal/models"
)

// StatePublisher 状态发布器
type StatePublisher struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewStatePublisher 创建发布器
func NewStatePublisher(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *StatePublisher {
	return &StatePublisher{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishResolvedActions 把一个周期的仲裁结果逐条追加到动作流
func (p *StatePublisher) PublishResolvedActions(ctx context.Context, sessionID string, actions []models.ResolvedAction) error {
	for _, action := range actions {
		values, err := actionStreamValues(sessionID, action)
		if err != nil {
			p.logger.Error("Failed to encode resolved action",
				zap.String("action_type", string(action.Action.ActionType())),
				zap.Error(err),
			)
			continue
		}

		if err := p.redisClient.XAdd(ctx, &redis.XAddArgs{
			Stream: p.config.Comfort.ActionStream,
			Values: values,
		}).Err(); err != nil {
			return fmt.Errorf("failed to publish action to stream: %w", err)
		}
	}
	return nil
}

// PublishEpoch 把窗口分类结果追加到动作流（event_type=epoch）
func (p *StatePublisher) PublishEpoch(ctx context.Context, sessionID string, epoch models.EpochResult) error {
	payload, err := json.Marshal(epoch)
	if err != nil {
		return fmt.Errorf("failed to marshal epoch result: %w", err)
	}

	if err := p.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: p.config.Comfort.ActionStream,
		Values: map[string]interface{}{
			"event_id":   uuid.New().String(),
			"event_type": "epoch",
			"session_id": sessionID,
			"data":       string(payload),
			"timestamp":  time.Now().Unix(),
		},
	}).Err(); err != nil {
		return fmt.Errorf("failed to publish epoch to stream: %w", err)
	}
	return nil
}

// UpdateRealtimeState 写入当前舒适状态（带 TTL）
func (p *StatePublisher) UpdateRealtimeState(ctx context.Context, state *models.RealtimeComfortState) error {
	key := p.realtimeKey(state.SessionID)

	jsonData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime state: %w", err)
	}

	ttl := time.Duration(p.config.Comfort.RealtimeTTLSeconds) * time.Second
	if err := p.redisClient.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set realtime state: %w", err)
	}

	return nil
}

// GetRealtimeState 读取当前舒适状态（测试与诊断用）
func (p *StatePublisher) GetRealtimeState(ctx context.Context, sessionID string) (*models.RealtimeComfortState, error) {
	val, err := p.redisClient.Get(ctx, p.realtimeKey(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("realtime state not found: %s", sessionID)
		}
		return nil, fmt.Errorf("failed to get realtime state: %w", err)
	}

	var state models.RealtimeComfortState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal realtime state: %w", err)
	}
	return &state, nil
}

func (p *StatePublisher) realtimeKey(sessionID string) string {
	return p.config.Comfort.RealtimeKeyPrefix + sessionID + p.config.Comfort.RealtimeSuffix
}

// actionStreamValues 把仲裁动作展平为 stream 字段
func actionStreamValues(sessionID string, action models.ResolvedAction) (map[string]interface{}, error) {
	payload, err := json.Marshal(action.Action)
	if err != nil {
		return nil, err
	}
	sources, err := json.Marshal(action.SourceAgents)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"event_id":      uuid.New().String(),
		"event_type":    "action",
		"session_id":    sessionID,
		"action_type":   string(action.Action.ActionType()),
		"payload":       string(payload),
		"source_agents": string(sources),
		"confidence":    fmt.Sprintf("%f", action.Confidence),
		"timestamp":     action.Timestamp.Unix(),
	}, nil
}
