package config

import (
	"os"
	"strconv"
	"time"
)

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// WeatherConfig 天气拉取配置
type WeatherConfig struct {
	BaseURL         string
	Latitude        float64
	Longitude       float64
	RefreshInterval time.Duration
	// 熔断参数
	FailureThreshold int
	ResetTimeout     time.Duration
}

// ComfortConfig 舒适控制回路配置
type ComfortConfig struct {
	SessionIDPrefix string
	CycleInterval   time.Duration

	// 输入主题
	MotionTopic  string
	PostureTopic string

	// 执行器命令主题
	FanCommandTopic   string
	SoundCommandTopic string

	// 风扇执行器熔断/重试参数
	FanFailureThreshold int
	FanResetTimeout     time.Duration
	FanPublishRetries   int
	FanRetryWait        time.Duration

	// 观察层输出
	ActionStream       string
	RealtimeKeyPrefix  string
	RealtimeSuffix     string
	RealtimeTTLSeconds int
}

// Config 服务配置
type Config struct {
	MQTT    MQTTConfig
	Redis   RedisConfig
	Weather WeatherConfig
	Comfort ComfortConfig

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量覆盖默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-sleepcomfort")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Weather.BaseURL = getEnv("WEATHER_BASE_URL", "https://api.open-meteo.com")
	cfg.Weather.Latitude = getEnvFloat("WEATHER_LATITUDE", 0)
	cfg.Weather.Longitude = getEnvFloat("WEATHER_LONGITUDE", 0)
	cfg.Weather.RefreshInterval = time.Duration(getEnvInt("WEATHER_REFRESH_SECONDS", 1800)) * time.Second
	cfg.Weather.FailureThreshold = getEnvInt("WEATHER_FAILURE_THRESHOLD", 3)
	cfg.Weather.ResetTimeout = time.Duration(getEnvInt("WEATHER_RESET_TIMEOUT_SECONDS", 300)) * time.Second

	cfg.Comfort.SessionIDPrefix = getEnv("COMFORT_SESSION_PREFIX", "session")
	cfg.Comfort.CycleInterval = time.Duration(getEnvInt("COMFORT_CYCLE_SECONDS", 30)) * time.Second
	cfg.Comfort.MotionTopic = getEnv("COMFORT_MOTION_TOPIC", "sleepcomfort/motion")
	cfg.Comfort.PostureTopic = getEnv("COMFORT_POSTURE_TOPIC", "sleepcomfort/posture")
	cfg.Comfort.FanCommandTopic = getEnv("COMFORT_FAN_TOPIC", "sleepcomfort/cmd/fan")
	cfg.Comfort.SoundCommandTopic = getEnv("COMFORT_SOUND_TOPIC", "sleepcomfort/cmd/sound")
	cfg.Comfort.FanFailureThreshold = getEnvInt("COMFORT_FAN_FAILURE_THRESHOLD", 5)
	cfg.Comfort.FanResetTimeout = time.Duration(getEnvInt("COMFORT_FAN_RESET_TIMEOUT_SECONDS", 30)) * time.Second
	cfg.Comfort.FanPublishRetries = getEnvInt("COMFORT_FAN_PUBLISH_RETRIES", 2)
	cfg.Comfort.FanRetryWait = time.Duration(getEnvInt("COMFORT_FAN_RETRY_WAIT_MS", 200)) * time.Millisecond
	cfg.Comfort.ActionStream = getEnv("COMFORT_ACTION_STREAM", "sleepcomfort:actions:stream")
	cfg.Comfort.RealtimeKeyPrefix = getEnv("COMFORT_REALTIME_KEY_PREFIX", "sleepcomfort:session:")
	cfg.Comfort.RealtimeSuffix = getEnv("COMFORT_REALTIME_SUFFIX", ":realtime")
	cfg.Comfort.RealtimeTTLSeconds = getEnvInt("COMFORT_REALTIME_TTL_SECONDS", 60)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
