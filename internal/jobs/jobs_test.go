package jobs

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewReminderSweepTask(t *testing.T) {
	task, err := NewReminderSweepTask(TriggerManual, 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, TaskTypeReminderSweep, task.Type())

	var payload ReminderSweepPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, TriggerManual, payload.Trigger)
}

func TestSchedulerRegisterTasks(t *testing.T) {
	redisOpt := asynq.RedisClientOpt{Addr: "127.0.0.1:0"}
	ist := time.FixedZone("IST", 5*3600+30*60)

	s := NewScheduler(redisOpt, SchedulerConfig{CronSpec: "0 9 * * *", Location: ist, SweepTimeout: time.Minute}, testLogger())
	assert.NoError(t, s.RegisterTasks())

	bad := NewScheduler(redisOpt, SchedulerConfig{CronSpec: "every morning", Location: ist, SweepTimeout: time.Minute}, testLogger())
	assert.Error(t, bad.RegisterTasks())
}

func TestDefaultQueues(t *testing.T) {
	queues := DefaultQueues()
	assert.Greater(t, queues[QueueCritical], queues[QueueDefault])
	assert.Greater(t, queues[QueueDefault], queues[QueueLow])
}
