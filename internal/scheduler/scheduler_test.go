package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studybot/internal/config"
	sr "github.com/example/studybot/internal/spaced_repetition"
	"github.com/example/studybot/pkg/models"
)

type reminder struct {
	subject string
	count   int
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []reminder
	err  error
}

func (n *fakeNotifier) SendReminders(_ context.Context, subject string, count int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, reminder{subject: subject, count: count})
	return nil
}

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func catalog(prefix string, n int) []models.VocabularyItem {
	items := make([]models.VocabularyItem, n)
	for i := range items {
		id := fmt.Sprintf("%s%d", prefix, i)
		items[i] = models.VocabularyItem{ID: id, Term: id, Meaning: "m-" + id}
	}
	return items
}

// newTracker returns a tracker where english has two overdue items and history one item due tomorrow
func newTracker(now time.Time) *sr.Tracker {
	tracker := sr.NewTracker(sr.NewPolicy(), sr.WithClock(func() time.Time { return now }))
	tracker.Load("english", map[string]models.MasteryRecord{
		"e0": {Mastery: models.MasteryWeak, NextDueAt: now.Add(-time.Hour), LastAnsweredAt: now.Add(-5 * time.Hour)},
		"e1": {Mastery: models.MasteryLearning, NextDueAt: now.Add(-time.Minute), LastAnsweredAt: now.Add(-25 * time.Hour)},
		"e2": {Mastery: models.MasteryAlmost, NextDueAt: now.Add(48 * time.Hour), LastAnsweredAt: now},
	})
	tracker.Load("history", map[string]models.MasteryRecord{
		"h0": {Mastery: models.MasteryLearning, NextDueAt: now.Add(24 * time.Hour), LastAnsweredAt: now},
	})
	return tracker
}

func newScheduler(t *testing.T, cfg config.SchedulerConfig, at time.Time, notifier Notifier) *Scheduler {
	t.Helper()
	catalogs := map[string][]models.VocabularyItem{
		"english": catalog("e", 4),
		"history": catalog("h", 2),
	}
	s, err := New(cfg, newTracker(at), catalogs, notifier, nil, WithClock(func() time.Time { return at }))
	require.NoError(t, err)
	return s
}

func defaultConfig() config.SchedulerConfig {
	return config.SchedulerConfig{Enabled: true, StartHour: 8, EndHour: 22, Interval: time.Hour, Timezone: "UTC"}
}

func TestRunManualCheck(t *testing.T) {
	notifier := &fakeNotifier{}
	s := newScheduler(t, defaultConfig(), base, notifier)

	count, err := s.RunManualCheck(context.Background(), "english")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = s.RunManualCheck(context.Background(), "history")
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.Equal(t, []reminder{{subject: "english", count: 2}}, notifier.sent)
}

func TestRunManualCheck_NotifierError(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	s := newScheduler(t, defaultConfig(), base, notifier)

	count, err := s.RunManualCheck(context.Background(), "english")
	require.Error(t, err)
	assert.Equal(t, 2, count)
}

func TestCheckAndSendReminders_NotificationHours(t *testing.T) {
	tests := []struct {
		name      string
		start     int
		end       int
		hour      int
		wantCalls int
	}{
		{"inside", 8, 22, 9, 1},
		{"at start", 8, 22, 8, 1},
		{"at end", 8, 22, 22, 1},
		{"before start", 8, 22, 7, 0},
		{"after end", 8, 22, 23, 0},
		{"overnight window late", 20, 2, 23, 1},
		{"overnight window early", 20, 2, 1, 1},
		{"overnight window outside", 20, 2, 12, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.StartHour, cfg.EndHour = tt.start, tt.end
			at := time.Date(2024, 5, 1, tt.hour, 30, 0, 0, time.UTC)

			notifier := &fakeNotifier{}
			s := newScheduler(t, cfg, at, notifier)
			s.checkAndSendReminders(context.Background())

			assert.Len(t, notifier.sent, tt.wantCalls)
		})
	}
}

func TestCheckAndSendReminders_UsesTimezone(t *testing.T) {
	cfg := defaultConfig()
	cfg.Timezone = "Asia/Tokyo"

	// 23:30 UTC is 08:30 in Tokyo
	at := time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)
	notifier := &fakeNotifier{}
	s := newScheduler(t, cfg, at, notifier)
	s.checkAndSendReminders(context.Background())

	assert.Len(t, notifier.sent, 1)
}

func TestNew_InvalidTimezone(t *testing.T) {
	cfg := defaultConfig()
	cfg.Timezone = "Nowhere/Special"

	_, err := New(cfg, newTracker(base), nil, &fakeNotifier{}, nil)
	assert.Error(t, err)
}

func TestStart_StopsWithContext(t *testing.T) {
	s := newScheduler(t, defaultConfig(), base, &fakeNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
