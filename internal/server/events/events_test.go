package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError,
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(TypePushCompleted, PushStats{AppliedCount: 2, ConflictsCount: 1})

	_, err := ulid.ParseStrict(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, TypePushCompleted, ev.Type)
	assert.False(t, ev.OccurredAt.IsZero())

	b, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, map[string]any{"appliedCount": float64(2), "conflictsCount": float64(1)}, decoded["data"])
	assert.Contains(t, decoded, "occurredAt")
}

// recordingPublisher запоминает события для проверок
type recordingPublisher struct {
	err    error
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ any) error {
	p.events = append(p.events, eventType)
	return p.err
}

func TestMulti_Publish(t *testing.T) {
	errBroker := errors.New("broker down")
	failing := &recordingPublisher{err: errBroker}
	ok := &recordingPublisher{}

	m := Multi{failing, ok, NewLogPublisher(setupTestLogger())}
	err := m.Publish(context.Background(), TypePushCompleted, PushStats{})

	assert.ErrorIs(t, err, errBroker)
	// Ошибка первого publisher не мешает остальным
	assert.Equal(t, []string{TypePushCompleted}, ok.events)

	assert.NoError(t, Multi{}.Publish(context.Background(), TypePushCompleted, nil))
}

type fakeRedis struct {
	err     error
	message any
	channel string
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.message = message
	return redis.NewIntResult(1, f.err)
}

func TestRedisPublisher_Publish(t *testing.T) {
	client := &fakeRedis{}
	p := newRedisPublisher(client, "")

	err := p.Publish(context.Background(), TypePushCompleted, PushStats{AppliedCount: 3})
	require.NoError(t, err)

	assert.Equal(t, DefaultRedisChannel, client.channel)
	payload, ok := client.message.([]byte)
	require.True(t, ok)

	var ev Event
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, TypePushCompleted, ev.Type)
	assert.NotEmpty(t, ev.ID)
}

func TestRedisPublisher_Error(t *testing.T) {
	client := &fakeRedis{err: errors.New("connection refused")}
	p := newRedisPublisher(client, "custom")

	err := p.Publish(context.Background(), TypePushCompleted, PushStats{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom")
	assert.Equal(t, "custom", client.channel)
}

func TestRedisPublisher_UnsupportedData(t *testing.T) {
	p := newRedisPublisher(&fakeRedis{}, "")
	assert.Error(t, p.Publish(context.Background(), TypePushCompleted, make(chan int)))
}
