// Package service 整合各层组件为睡眠舒适控制服务
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-sleepcomfort/internal/actuator"
	"wisefido-sleepcomfort/internal/agents"
	"wisefido-sleepcomfort/internal/blackboard"
	"wisefido-sleepcomfort/internal/breaker"
	"wisefido-sleepcomfort/internal/classifier"
	"wisefido-sleepcomfort/internal/config"
	"wisefido-sleepcomfort/internal/consumer"
	"wisefido-sleepcomfort/internal/controller"
	"wisefido-sleepcomfort/internal/models"
	"wisefido-sleepcomfort/internal/mqttclient"
	"wisefido-sleepcomfort/internal/publisher"
	"wisefido-sleepcomfort/internal/weather"
)

// ComfortService 睡眠舒适控制服务
//
// 持有一个会话的全部组件：黑板、分类器、agent 注册表、仲裁引擎、
// 执行器适配器（逐个熔断包裹）、天气客户端与观察层发布器。
type ComfortService struct {
	config *config.Config
	logger *zap.Logger

	redisClient *redis.Client
	mqttClient  *mqttclient.Client

	bb         *blackboard.Blackboard
	classifier *classifier.EpochClassifier
	registry   *agents.Registry
	controller *controller.Controller
	consumer   *consumer.MotionConsumer

	fanDriver   *actuator.FanDriver
	soundDriver *actuator.SoundDriver
	weatherCli  *weather.Client
	publisher   *publisher.StatePublisher

	// 每个外部依赖一个熔断器实例
	fanBreaker     *breaker.CircuitBreaker
	soundBreaker   *breaker.CircuitBreaker
	weatherBreaker *breaker.CircuitBreaker

	sessionID    string
	sessionStart time.Time
	stopped      atomic.Bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup

	// 最近一次派发的执行器状态（realtime 发布用）
	mu         sync.Mutex
	lastFan    int
	lastNoise  models.NoiseType
	lastVolume float64
	lastEpoch  models.EpochResult
}

// NewComfortService 创建服务
func NewComfortService(cfg *config.Config, logger *zap.Logger) (*ComfortService, error) {
	// 1. 连接 Redis（观察层输出）
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 2. 连接 MQTT（采样输入 + 执行器命令输出）
	mqttClient, err := mqttclient.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	s := &ComfortService{
		config:      cfg,
		logger:      logger,
		redisClient: redisClient,
		mqttClient:  mqttClient,
		sessionID:   fmt.Sprintf("%s-%s", cfg.Comfort.SessionIDPrefix, uuid.New().String()),
	}

	// 3. 核心组件
	s.bb = blackboard.New()
	s.classifier = classifier.NewEpochClassifier(logger)
	s.publisher = publisher.NewStatePublisher(cfg, redisClient, logger)

	// 4. 执行器适配器 + 各自的熔断器
	s.fanDriver = actuator.NewFanDriver(
		mqttClient, cfg.Comfort.FanCommandTopic, cfg.MQTT.QoS,
		cfg.Comfort.FanPublishRetries, cfg.Comfort.FanRetryWait, logger,
	)
	s.soundDriver = actuator.NewSoundDriver(
		mqttClient, cfg.Comfort.SoundCommandTopic, cfg.MQTT.QoS, logger,
	)
	s.fanBreaker = breaker.New("fan", cfg.Comfort.FanFailureThreshold, cfg.Comfort.FanResetTimeout,
		s.breakerObserver("fan"))
	s.soundBreaker = breaker.New("sound", cfg.Comfort.FanFailureThreshold, cfg.Comfort.FanResetTimeout,
		s.breakerObserver("sound"))

	// 5. 天气客户端 + 熔断器
	s.weatherCli = weather.NewClient(cfg.Weather.BaseURL, cfg.Weather.Latitude, cfg.Weather.Longitude, logger)
	s.weatherBreaker = breaker.New("weather", cfg.Weather.FailureThreshold, cfg.Weather.ResetTimeout,
		s.breakerObserver("weather"))

	// 6. 决策源（显式组合注册）
	s.registry = agents.NewRegistry()
	for _, a := range []agents.Agent{
		agents.NewPostureAgent(),
		agents.NewThermalAgent(),
		agents.NewSoundAgent(),
		agents.NewEnergyAgent(),
	} {
		if err := s.registry.Register(a); err != nil {
			return nil, fmt.Errorf("failed to register agent: %w", err)
		}
	}

	// 7. 仲裁引擎
	s.controller = controller.NewController(s.bb, s.registry, controller.Callbacks{
		OnFanSpeed:      s.handleFanSpeed,
		OnSoundChange:   s.handleSoundChange,
		OnInsight:       s.handleInsight,
		OnWakeSequence:  s.handleWakeSequence,
		OnCycleComplete: s.handleCycleComplete,
	}, cfg.Comfort.CycleInterval, nil, logger)

	// 8. 采样消费者
	s.consumer = consumer.NewMotionConsumer(cfg, mqttClient, s.classifier, s.bb, s.handleEpoch, logger)

	return s, nil
}

// SessionID 返回当前会话标识
func (s *ComfortService) SessionID() string { return s.sessionID }

// CycleCount 返回已完成的控制周期数
func (s *ComfortService) CycleCount() int64 { return s.controller.CycleCount() }

// Start 启动会话（订阅输入、启动天气/时长维护、启动控制回路）
func (s *ComfortService) Start(ctx context.Context) error {
	s.sessionStart = time.Now()
	s.stopped.Store(false)

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.consumer.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start motion consumer: %w", err)
	}

	s.wg.Add(2)
	go s.weatherLoop(loopCtx)
	go s.sessionClockLoop(loopCtx)

	s.controller.Start()

	s.logger.Info("Comfort service started",
		zap.String("session_id", s.sessionID),
		zap.Duration("cycle_interval", s.config.Comfort.CycleInterval),
	)
	return nil
}

// Stop 停止会话（随时可调；已派发的执行器调用结果被丢弃）
func (s *ComfortService) Stop(ctx context.Context) error {
	s.stopped.Store(true)

	s.controller.Stop()

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if err := s.consumer.Stop(); err != nil {
		s.logger.Error("Error stopping consumer", zap.Error(err))
	}

	s.mqttClient.Disconnect()
	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Error closing redis client", zap.Error(err))
	}

	s.logger.Info("Comfort service stopped",
		zap.String("session_id", s.sessionID),
	)
	return nil
}

// SetPreSleepReport 写入睡前自报数据
func (s *ComfortService) SetPreSleepReport(report models.PreSleepContext) {
	s.bb.UpdateContext(blackboard.ContextUpdate{PreSleep: &report})
}

// SetSleepDebt 写入累计睡眠负债（小时）
func (s *ComfortService) SetSleepDebt(hours float64) {
	s.bb.UpdateContext(blackboard.ContextUpdate{SleepDebt: &hours})
}

// SetPosture 写入当前睡姿（测试/外部管线直连用）
func (s *ComfortService) SetPosture(p models.Posture) {
	s.bb.UpdateContext(blackboard.ContextUpdate{Posture: &p})
}

// weatherLoop 周期性拉取天气快照（熔断包裹，失败只降级不中断）
func (s *ComfortService) weatherLoop(ctx context.Context) {
	defer s.wg.Done()

	s.refreshWeather(ctx)

	ticker := time.NewTicker(s.config.Weather.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshWeather(ctx)
		}
	}
}

func (s *ComfortService) refreshWeather(ctx context.Context) {
	var data *models.WeatherData
	err := s.weatherBreaker.Execute(func() error {
		var fetchErr error
		data, fetchErr = s.weatherCli.Fetch(ctx)
		return fetchErr
	})
	if err != nil {
		// 感知降级：thermal agent 会用保守默认值
		s.logger.Warn("Weather refresh failed",
			zap.String("breaker_state", string(s.weatherBreaker.State())),
			zap.Error(err),
		)
		return
	}
	if s.stopped.Load() {
		return
	}
	s.bb.UpdateContext(blackboard.ContextUpdate{Weather: data})
}

// sessionClockLoop 每分钟刷新会话时长
func (s *ComfortService) sessionClockLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			minutes := time.Since(s.sessionStart).Minutes()
			s.bb.UpdateContext(blackboard.ContextUpdate{SessionDurationMinutes: &minutes})
		}
	}
}

// handleEpoch 窗口关闭：发布分类结果到动作流
func (s *ComfortService) handleEpoch(result models.EpochResult) {
	s.mu.Lock()
	s.lastEpoch = result
	s.mu.Unlock()

	if err := s.publisher.PublishEpoch(context.Background(), s.sessionID, result); err != nil {
		s.logger.Error("Failed to publish epoch", zap.Error(err))
	}
}

// handleFanSpeed 风速派发（异步，熔断包裹，失败不回传控制周期）
func (s *ComfortService) handleFanSpeed(speed int) {
	go func() {
		err := s.fanBreaker.Execute(func() error {
			return s.fanDriver.SetSpeed(speed)
		})
		if s.stopped.Load() {
			// 会话已停止：丢弃结果，不再回写状态
			return
		}
		if err != nil {
			s.logger.Warn("Fan dispatch failed",
				zap.Int("speed", speed),
				zap.String("breaker_state", string(s.fanBreaker.State())),
				zap.Error(err),
			)
			return
		}
		s.mu.Lock()
		s.lastFan = speed
		s.mu.Unlock()
	}()
}

// handleSoundChange 环境音派发
func (s *ComfortService) handleSoundChange(noiseType models.NoiseType, volume float64) {
	go func() {
		err := s.soundBreaker.Execute(func() error {
			return s.soundDriver.SetSound(noiseType, volume)
		})
		if s.stopped.Load() {
			return
		}
		if err != nil {
			s.logger.Warn("Sound dispatch failed",
				zap.String("noise_type", string(noiseType)),
				zap.Error(err),
			)
			return
		}
		s.mu.Lock()
		s.lastNoise = noiseType
		s.lastVolume = volume
		s.mu.Unlock()
	}()
}

// handleInsight 洞察透传：只记录日志（流发布由 handleCycleComplete 统一完成）
func (s *ComfortService) handleInsight(message, category string) {
	s.logger.Info("Insight",
		zap.String("category", category),
		zap.String("message", message),
	)
}

// handleWakeSequence 唤醒序列：记录日志（闹钟/界面属于外部协作方）
func (s *ComfortService) handleWakeSequence(minutesUntilAlarm int) {
	s.logger.Info("Wake sequence triggered",
		zap.Int("minutes_until_alarm", minutesUntilAlarm),
	)
}

// handleCycleComplete 周期收尾：发布仲裁结果与 realtime 状态
func (s *ComfortService) handleCycleComplete(cycleCount int64, actions []models.ResolvedAction) {
	if s.stopped.Load() {
		return
	}

	ctx := context.Background()
	if err := s.publisher.PublishResolvedActions(ctx, s.sessionID, actions); err != nil {
		s.logger.Error("Failed to publish resolved actions", zap.Error(err))
	}

	snap := s.bb.Snapshot()
	s.mu.Lock()
	state := &models.RealtimeComfortState{
		SessionID:       s.sessionID,
		FanSpeed:        s.lastFan,
		NoiseType:       s.lastNoise,
		Volume:          s.lastVolume,
		SleepStage:      snap.CurrentSleepStage,
		Posture:         snap.CurrentPosture,
		TimeOfNight:     snap.TimeOfNight,
		CycleCount:      cycleCount,
		EpochConfidence: s.lastEpoch.Confidence,
		Timestamp:       time.Now().Unix(),
	}
	s.mu.Unlock()

	if err := s.publisher.UpdateRealtimeState(ctx, state); err != nil {
		s.logger.Error("Failed to update realtime state", zap.Error(err))
	}
}

// breakerObserver 熔断状态转移观察（日志）
func (s *ComfortService) breakerObserver(name string) breaker.StateChangeFunc {
	return func(from, to breaker.State) {
		s.logger.Warn("Circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	}
}
