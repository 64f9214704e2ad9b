package blackboard_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-sleepcomfort/internal/blackboard"
	"wisefido-sleepcomfort/internal/models"
)

func posturePtr(p models.Posture) *models.Posture     { return &p }
func stagePtr(s models.SleepStage) *models.SleepStage { return &s }
func tonPtr(t models.TimeOfNight) *models.TimeOfNight { return &t }
func float64Ptr(f float64) *float64                   { return &f }

func validHypothesis() models.Hypothesis {
	return models.Hypothesis{
		AgentID:    "thermal-agent",
		Timestamp:  time.Now(),
		Confidence: 0.8,
		Action:     models.SetFanSpeed{Speed: 60},
		Reasoning:  "feels-like above comfort band",
		Priority:   models.PriorityHigh,
		ExpiresAt:  time.Now().Add(5 * time.Minute),
	}
}

func TestNew_DefaultContext(t *testing.T) {
	bb := blackboard.New()
	snap := bb.Snapshot()

	assert.Equal(t, models.PostureUnknown, snap.CurrentPosture)
	assert.Equal(t, models.StageAwake, snap.CurrentSleepStage)
	assert.Nil(t, snap.Weather)
	assert.Nil(t, snap.PreSleep)
}

func TestUpdateContext_ShallowMergeNilFieldsUntouched(t *testing.T) {
	bb := blackboard.New()

	bb.UpdateContext(blackboard.ContextUpdate{
		Posture: posturePtr(models.PostureSupine),
		Weather: &models.WeatherData{TemperatureCelsius: 27.5, Humidity: 70},
	})
	// 第二次更新不带 Posture/Weather：原值保留
	bb.UpdateContext(blackboard.ContextUpdate{
		SleepStage: stagePtr(models.StageDeep),
		SleepDebt:  float64Ptr(2.5),
	})

	snap := bb.Snapshot()
	assert.Equal(t, models.PostureSupine, snap.CurrentPosture)
	assert.Equal(t, models.StageDeep, snap.CurrentSleepStage)
	require.NotNil(t, snap.Weather)
	assert.InDelta(t, 27.5, snap.Weather.TemperatureCelsius, 1e-9)
	assert.InDelta(t, 2.5, snap.SleepDebt, 1e-9)
}

func TestUpdateContext_LastWriteWins(t *testing.T) {
	bb := blackboard.New()

	bb.UpdateContext(blackboard.ContextUpdate{TimeOfNight: tonPtr(models.NightEarly)})
	bb.UpdateContext(blackboard.ContextUpdate{TimeOfNight: tonPtr(models.NightPreWake)})

	assert.Equal(t, models.NightPreWake, bb.Snapshot().TimeOfNight)
}

func TestSnapshot_IsolatedFromLaterMutation(t *testing.T) {
	bb := blackboard.New()
	bb.UpdateContext(blackboard.ContextUpdate{
		Weather: &models.WeatherData{TemperatureCelsius: 20},
	})

	snap := bb.Snapshot()
	snap.Weather.TemperatureCelsius = 99 // 修改快照不应影响黑板

	assert.InDelta(t, 20, bb.Snapshot().Weather.TemperatureCelsius, 1e-9)
}

func TestPostHypothesis_AppendsInOrder(t *testing.T) {
	bb := blackboard.New()

	h1 := validHypothesis()
	h2 := validHypothesis()
	h2.AgentID = "posture-agent"

	require.NoError(t, bb.PostHypothesis(h1))
	require.NoError(t, bb.PostHypothesis(h2))

	hyps := bb.Hypotheses()
	require.Len(t, hyps, 2)
	assert.Equal(t, "thermal-agent", hyps[0].AgentID)
	assert.Equal(t, "posture-agent", hyps[1].AgentID)
}

func TestPostHypothesis_RejectsInvalid(t *testing.T) {
	bb := blackboard.New()

	missing := validHypothesis()
	missing.Action = nil
	assert.Error(t, bb.PostHypothesis(missing))

	badPriority := validHypothesis()
	badPriority.Priority = models.Priority("urgent")
	assert.Error(t, bb.PostHypothesis(badPriority))

	badConfidence := validHypothesis()
	badConfidence.Confidence = 1.5
	assert.Error(t, bb.PostHypothesis(badConfidence))

	assert.Empty(t, bb.Hypotheses())
}

func TestClearHypotheses(t *testing.T) {
	bb := blackboard.New()
	require.NoError(t, bb.PostHypothesis(validHypothesis()))

	bb.ClearHypotheses()

	assert.Empty(t, bb.Hypotheses())
}

func TestResolve_RecordsLastResolved(t *testing.T) {
	bb := blackboard.New()

	actions := []models.ResolvedAction{
		{
			Action:       models.SetFanSpeed{Speed: 55},
			SourceAgents: []string{"thermal-agent"},
			Confidence:   0.8,
			Timestamp:    time.Now(),
		},
	}
	bb.Resolve(actions)

	got := bb.LastResolved()
	require.Len(t, got, 1)
	assert.Equal(t, models.SetFanSpeed{Speed: 55}, got[0].Action)

	// 返回值是拷贝，调用方修改不影响黑板
	got[0].Confidence = 0
	assert.InDelta(t, 0.8, bb.LastResolved()[0].Confidence, 1e-9)
}

func TestLastResolvedAt(t *testing.T) {
	bb := blackboard.New()
	assert.True(t, bb.LastResolvedAt().IsZero())

	before := time.Now()
	bb.Resolve([]models.ResolvedAction{{Action: models.SetFanSpeed{Speed: 10}}})

	at := bb.LastResolvedAt()
	assert.False(t, at.IsZero())
	assert.False(t, at.Before(before))

	bb.Reset()
	assert.True(t, bb.LastResolvedAt().IsZero())
}

func TestReset_RestoresDefaults(t *testing.T) {
	bb := blackboard.New()
	bb.UpdateContext(blackboard.ContextUpdate{
		Posture:    posturePtr(models.PostureProne),
		SleepStage: stagePtr(models.StageREM),
	})
	require.NoError(t, bb.PostHypothesis(validHypothesis()))
	bb.Resolve([]models.ResolvedAction{{Action: models.SetFanSpeed{Speed: 10}}})

	bb.Reset()

	snap := bb.Snapshot()
	assert.Equal(t, models.PostureUnknown, snap.CurrentPosture)
	assert.Equal(t, models.StageAwake, snap.CurrentSleepStage)
	assert.Empty(t, bb.Hypotheses())
	assert.Empty(t, bb.LastResolved())
}
