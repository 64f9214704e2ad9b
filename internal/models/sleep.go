package models

// SleepStage 睡眠阶段
type SleepStage string

const (
	StageAwake SleepStage = "awake"
	StageLight SleepStage = "light"
	StageDeep  SleepStage = "deep"
	StageREM   SleepStage = "rem"
)

// Posture 睡姿（由外部姿态识别管线提供）
type Posture string

const (
	PostureSupine       Posture = "supine"
	PostureProne        Posture = "prone"
	PostureLeftLateral  Posture = "left-lateral"
	PostureRightLateral Posture = "right-lateral"
	PostureFetal        Posture = "fetal"
	PostureUnknown      Posture = "unknown"
)

// EpochResult 一个 30 秒分析窗口的分类结果
//
// MovementIntensity 为窗口内相邻采样差值幅度的平均值（g 单位）。
type EpochResult struct {
	Stage             SleepStage `json:"stage"`
	Confidence        float64    `json:"confidence"` // [0,1]
	EpochIndex        int        `json:"epoch_index"`
	MovementIntensity float64    `json:"movement_intensity"`
	Timestamp         int64      `json:"timestamp"` // 窗口关闭时刻，Unix 毫秒
}

// TimeOfNight 夜间时段（由 thermal agent 按小时写入黑板）
type TimeOfNight string

const (
	NightEarly   TimeOfNight = "early"
	NightMid     TimeOfNight = "mid"
	NightLate    TimeOfNight = "late"
	NightPreWake TimeOfNight = "pre-wake"
)
