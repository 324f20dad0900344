package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCounter struct {
	count int
	err   error
	day   time.Time
}

func (s *stubCounter) CountDue(_ context.Context, day time.Time) (int, error) {
	s.day = day
	return s.count, s.err
}

func TestRecordReminders(t *testing.T) {
	before := testutil.ToFloat64(remindersTotal.WithLabelValues("sent"))

	RecordReminders("sent", 3)
	RecordReminders("sent", 0)

	assert.Equal(t, before+3, testutil.ToFloat64(remindersTotal.WithLabelValues("sent")))
}

func TestRecordSMSExtraction(t *testing.T) {
	before := testutil.ToFloat64(smsExtractionsTotal.WithLabelValues("water", "accepted"))
	RecordSMSExtraction("water", true)
	assert.Equal(t, before+1, testutil.ToFloat64(smsExtractionsTotal.WithLabelValues("water", "accepted")))

	before = testutil.ToFloat64(smsExtractionsTotal.WithLabelValues("unknown", "rejected"))
	RecordSMSExtraction("", false)
	assert.Equal(t, before+1, testutil.ToFloat64(smsExtractionsTotal.WithLabelValues("unknown", "rejected")))
}

func TestPendingCollectorCollect(t *testing.T) {
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	counter := &stubCounter{count: 7}
	collector := NewPendingCollector(counter, nil, time.Minute, func() time.Time { return day })

	require.NoError(t, collector.collect(context.Background()))
	assert.Equal(t, float64(7), testutil.ToFloat64(pendingReminders))
	assert.Equal(t, day, counter.day)

	counter.err = errors.New("db down")
	counter.count = 1
	require.Error(t, collector.collect(context.Background()))
	assert.Equal(t, float64(7), testutil.ToFloat64(pendingReminders))
}

func TestPendingCollectorRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	collector := NewPendingCollector(&stubCounter{count: 2}, nil, time.Hour, time.Now)

	done := make(chan struct{})
	go func() {
		collector.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}
