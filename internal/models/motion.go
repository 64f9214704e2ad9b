package models

// MotionSample 原始加速度计采样点
//
// 由手机传感器管线通过 MQTT 上报，单位为 g，时间戳为毫秒。
// 采样数据即用即弃，不做持久化。
type MotionSample struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Timestamp int64   `json:"timestamp"` // Unix 毫秒
}

// PostureMessage 姿态上报消息（姿态识别管线在控制器外部）
type PostureMessage struct {
	Posture   Posture `json:"posture"`
	Timestamp int64   `json:"timestamp"` // Unix 毫秒
}
