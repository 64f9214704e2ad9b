package models

// WeatherData 最近一次天气快照
type WeatherData struct {
	TemperatureCelsius float64 `json:"temperature_celsius"`
	Humidity           float64 `json:"humidity"` // 相对湿度百分比
	FeelsLike          float64 `json:"feels_like"`
	Description        string  `json:"description"`
	FetchedAt          int64   `json:"fetched_at"` // Unix 秒
}

// PreSleepContext 睡前自报数据（七个字段，由 onboarding 层采集）
type PreSleepContext struct {
	CaffeineMg                 float64 `json:"caffeine_mg"`
	CaffeineLastIntakeHoursAgo float64 `json:"caffeine_last_intake_hours_ago"`
	AlcoholDrinks              float64 `json:"alcohol_drinks"`
	ExerciseIntensity          int     `json:"exercise_intensity"` // 0-5
	ExerciseHoursAgo           float64 `json:"exercise_hours_ago"`
	StressLevel                int     `json:"stress_level"` // 0-5
	ScreenTimeMinutes          int     `json:"screen_time_minutes"`
	MealHoursAgo               float64 `json:"meal_hours_ago"`
}

// RealtimeComfortState 当前舒适控制状态（写入 Redis 供展示层读取）
type RealtimeComfortState struct {
	SessionID       string      `json:"session_id"`
	FanSpeed        int         `json:"fan_speed"` // [0,100]
	NoiseType       NoiseType   `json:"noise_type,omitempty"`
	Volume          float64     `json:"volume"` // [0,1]
	SleepStage      SleepStage  `json:"sleep_stage"`
	Posture         Posture     `json:"posture"`
	TimeOfNight     TimeOfNight `json:"time_of_night,omitempty"`
	CycleCount      int64       `json:"cycle_count"`
	EpochConfidence float64     `json:"epoch_confidence"`
	Timestamp       int64       `json:"timestamp"` // Unix 秒
}
