package publisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-sleepcomfort/internal/config"
	"wisefido-sleepcomfort/internal/models"
)

func newTestPublisher(t *testing.T) (*StatePublisher, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{}
	cfg.Comfort.ActionStream = "sleepcomfort:actions:stream"
	cfg.Comfort.RealtimeKeyPrefix = "sleepcomfort:session:"
	cfg.Comfort.RealtimeSuffix = ":realtime"
	cfg.Comfort.RealtimeTTLSeconds = 60

	return NewStatePublisher(cfg, client, zap.NewNop()), mr, client
}

func TestPublishResolvedActions_AppendsToStream(t *testing.T) {
	p, _, client := newTestPublisher(t)
	ctx := context.Background()

	actions := []models.ResolvedAction{
		{
			Action:       models.SetFanSpeed{Speed: 45},
			SourceAgents: []string{"thermal-agent", "posture-agent"},
			Confidence:   0.8,
			Timestamp:    time.Now(),
		},
		{
			Action:       models.SetSoundType{NoiseType: models.NoisePink, Volume: 0.25},
			SourceAgents: []string{"sound-agent"},
			Confidence:   0.7,
			Timestamp:    time.Now(),
		},
	}

	require.NoError(t, p.PublishResolvedActions(ctx, "session-abc", actions))

	entries, err := client.XRange(ctx, "sleepcomfort:actions:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0].Values
	assert.Equal(t, "action", first["event_type"])
	assert.Equal(t, "session-abc", first["session_id"])
	assert.Equal(t, "set_fan_speed", first["action_type"])
	assert.NotEmpty(t, first["event_id"])

	var fan models.SetFanSpeed
	require.NoError(t, json.Unmarshal([]byte(first["payload"].(string)), &fan))
	assert.InDelta(t, 45, fan.Speed, 1e-9)

	var sources []string
	require.NoError(t, json.Unmarshal([]byte(first["source_agents"].(string)), &sources))
	assert.Equal(t, []string{"thermal-agent", "posture-agent"}, sources)

	assert.Equal(t, "set_sound_type", entries[1].Values["action_type"])
}

func TestPublishResolvedActions_EmptyIsNoop(t *testing.T) {
	p, _, client := newTestPublisher(t)
	ctx := context.Background()

	require.NoError(t, p.PublishResolvedActions(ctx, "session-abc", nil))

	n, err := client.XLen(ctx, "sleepcomfort:actions:stream").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPublishEpoch(t *testing.T) {
	p, _, client := newTestPublisher(t)
	ctx := context.Background()

	epoch := models.EpochResult{
		Stage:             models.StageDeep,
		Confidence:        0.9,
		EpochIndex:        4,
		MovementIntensity: 0.01,
		Timestamp:         time.Now().UnixMilli(),
	}
	require.NoError(t, p.PublishEpoch(ctx, "session-abc", epoch))

	entries, err := client.XRange(ctx, "sleepcomfort:actions:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "epoch", entries[0].Values["event_type"])

	var got models.EpochResult
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["data"].(string)), &got))
	assert.Equal(t, models.StageDeep, got.Stage)
	assert.Equal(t, 4, got.EpochIndex)
}

func TestRealtimeState_RoundTrip(t *testing.T) {
	p, mr, _ := newTestPublisher(t)
	ctx := context.Background()

	state := &models.RealtimeComfortState{
		SessionID:  "session-abc",
		FanSpeed:   42,
		NoiseType:  models.NoisePink,
		Volume:     0.25,
		SleepStage: models.StageLight,
		Posture:    models.PostureSupine,
		CycleCount: 7,
		Timestamp:  time.Now().Unix(),
	}
	require.NoError(t, p.UpdateRealtimeState(ctx, state))

	// TTL 生效
	ttl := mr.TTL("sleepcomfort:session:session-abc:realtime")
	assert.Equal(t, 60*time.Second, ttl)

	got, err := p.GetRealtimeState(ctx, "session-abc")
	require.NoError(t, err)
	assert.Equal(t, 42, got.FanSpeed)
	assert.Equal(t, models.NoisePink, got.NoiseType)
	assert.Equal(t, int64(7), got.CycleCount)
}

func TestGetRealtimeState_MissingKey(t *testing.T) {
	p, _, _ := newTestPublisher(t)

	_, err := p.GetRealtimeState(context.Background(), "nonexistent")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRealtimeState_ExpiresAfterTTL(t *testing.T) {
	p, mr, _ := newTestPublisher(t)
	ctx := context.Background()

	require.NoError(t, p.UpdateRealtimeState(ctx, &models.RealtimeComfortState{SessionID: "session-abc"}))

	mr.FastForward(61 * time.Second)

	_, err := p.GetRealtimeState(ctx, "session-abc")
	assert.Error(t, err)
}
