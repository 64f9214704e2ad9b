package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"wisefido-sleepcomfort/internal/config"
	"wisefido-sleepcomfort/internal/logger"
	"wisefido-sleepcomfort/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-sleepcomfort")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting wisefido-sleepcomfort service",
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("motion_topic", cfg.Comfort.MotionTopic),
		zap.Duration("cycle_interval", cfg.Comfort.CycleInterval),
	)

	// 创建服务
	comfortService, err := service.NewComfortService(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create comfort service", zap.Error(err))
	}

	// 启动服务
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := comfortService.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start comfort service", zap.Error(err))
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	if err := comfortService.Stop(ctx); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
