package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/studybot/internal/config"
	"github.com/example/studybot/pkg/models"
)

// Notifier sends due-review reminders to the learner
type Notifier interface {
	SendReminders(ctx context.Context, subject string, count int) error
}

// ReviewSource reports which catalog items are due for review
type ReviewSource interface {
	GetReviewCandidates(allItems []models.VocabularyItem, subject string, includeDueSoon bool) []models.VocabularyItem
}

// Scheduler periodically reminds the learner about due reviews
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	reviews   ReviewSource
	catalogs  map[string][]models.VocabularyItem
	cfg       config.SchedulerConfig
	loc       *time.Location
	log       *slog.Logger
	now       func() time.Time
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces the wall clock used for the notification window
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a new scheduler instance
func New(cfg config.SchedulerConfig, reviews ReviewSource, catalogs map[string][]models.VocabularyItem, notifier Notifier, log *slog.Logger, opts ...Option) (*Scheduler, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
		}
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		notifier:  notifier,
		reviews:   reviews,
		catalogs:  catalogs,
		cfg:       cfg,
		loc:       loc,
		log:       log.With(slog.String("component", "scheduler")),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start schedules the reminder job and runs the scheduler in the background until ctx is done
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.scheduler.Every(s.cfg.Interval).WaitForSchedule().Do(s.checkAndSendReminders, ctx); err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}
	s.scheduler.StartAsync()
	s.log.InfoContext(ctx, "scheduler started", slog.Duration("interval", s.cfg.Interval))

	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	if s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}

// checkAndSendReminders sends one reminder per subject with due reviews, inside the notification hours
func (s *Scheduler) checkAndSendReminders(ctx context.Context) {
	hour := s.now().In(s.loc).Hour()
	if !s.withinNotificationHours(hour) {
		s.log.DebugContext(ctx, "outside notification hours, skipping reminders",
			slog.Int("hour", hour),
			slog.Int("start_hour", s.cfg.StartHour),
			slog.Int("end_hour", s.cfg.EndHour))
		return
	}

	for _, subject := range s.subjects() {
		if _, err := s.RunManualCheck(ctx, subject); err != nil {
			s.log.ErrorContext(ctx, "failed to send reminder",
				slog.String("subject", subject),
				slog.String("error", err.Error()))
		}
	}
}

// withinNotificationHours reports whether hour lies in [StartHour, EndHour]. A start after the end wraps past midnight.
func (s *Scheduler) withinNotificationHours(hour int) bool {
	if s.cfg.StartHour <= s.cfg.EndHour {
		return hour >= s.cfg.StartHour && hour <= s.cfg.EndHour
	}
	return hour >= s.cfg.StartHour || hour <= s.cfg.EndHour
}

// DueCount returns how many items of subject are due now
func (s *Scheduler) DueCount(subject string) int {
	return len(s.reviews.GetReviewCandidates(s.catalogs[subject], subject, false))
}

// RunManualCheck reminds about subject's due reviews regardless of the hour and returns their count
func (s *Scheduler) RunManualCheck(ctx context.Context, subject string) (int, error) {
	count := s.DueCount(subject)
	if count == 0 {
		return 0, nil
	}
	if err := s.notifier.SendReminders(ctx, subject, count); err != nil {
		return count, fmt.Errorf("failed to notify about %s: %w", subject, err)
	}
	s.log.InfoContext(ctx, "reminder sent", slog.String("subject", subject), slog.Int("due", count))
	return count, nil
}

func (s *Scheduler) subjects() []string {
	out := make([]string, 0, len(s.catalogs))
	for subject := range s.catalogs {
		out = append(out, subject)
	}
	sort.Strings(out)
	return out
}
