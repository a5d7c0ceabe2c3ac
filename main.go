package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/example/studybot/internal/api"
	"github.com/example/studybot/internal/bot"
	"github.com/example/studybot/internal/config"
	"github.com/example/studybot/internal/database"
	"github.com/example/studybot/internal/excel"
	"github.com/example/studybot/internal/logger"
	"github.com/example/studybot/internal/quiz"
	"github.com/example/studybot/internal/scheduler"
	sr "github.com/example/studybot/internal/spaced_repetition"
	"github.com/example/studybot/pkg/models"
)

func main() {
	if err := run(); err != nil {
		slog.Error("studybot stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Database.Driver, cfg.Database.DSN, log)
	if err != nil {
		return err
	}
	defer db.Close()

	masteryRepo := database.NewMasteryRepository(db)
	counterRepo := database.NewCounterRepository(db)

	policy := sr.NewPolicy()
	policy.DueSoonWindow = cfg.SRS.DueSoonWindow
	policy.MaxInterval = cfg.SRS.MaxInterval
	policy.RetentionScale = retentionScale(cfg.SRS, time.Now())
	tracker := sr.NewTracker(policy)

	records, err := masteryRepo.LoadAll(ctx)
	if err != nil {
		return err
	}
	for subject, recs := range records {
		tracker.Load(subject, recs)
	}

	catalogs, err := loadCatalogs(cfg.Catalog.Dir, log)
	if err != nil {
		return err
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("unable to create bot: %w", err)
	}
	botAPI.Debug = cfg.Telegram.Debug
	log.Info("authorized on telegram", slog.String("account", botAPI.Self.UserName))

	builder := quiz.NewBuilder(tracker, nil)
	b := bot.New(botAPI, bot.ConfigFrom(cfg.Telegram, cfg.SRS), tracker, builder, catalogs, masteryRepo, counterRepo, log)

	var reminders *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		if reminders, err = scheduler.New(cfg.Scheduler, tracker, catalogs, b, log); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Start(gctx) })

	if reminders != nil {
		g.Go(func() error { return reminders.Start(gctx) })
	}

	if cfg.API.Enabled {
		srv := api.NewServer(cfg.API, api.NewHandler(tracker, catalogs, log).Router(), log)
		g.Go(func() error { return srv.Run(gctx) })
	}

	runErr := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := flush(flushCtx, tracker, masteryRepo); err != nil {
		log.Error("failed to flush mastery records", slog.String("error", err.Error()))
	}
	return runErr
}

// flush writes every subject's in-memory records back to the store
func flush(ctx context.Context, tracker *sr.Tracker, repo *database.MasteryRepository) error {
	for _, subject := range tracker.Subjects() {
		if err := repo.Save(ctx, subject, tracker.Snapshot(subject)); err != nil {
			return fmt.Errorf("subject %s: %w", subject, err)
		}
	}
	return nil
}

// loadCatalogs reads one catalog per file in dir, keyed by subject
func loadCatalogs(dir string, log *slog.Logger) (map[string][]models.VocabularyItem, error) {
	results, err := excel.LoadDir(dir, excel.DefaultImportConfig())
	if err != nil {
		return nil, err
	}

	catalogs := make(map[string][]models.VocabularyItem, len(results))
	for subject, result := range results {
		for _, msg := range result.Errors {
			log.Warn("catalog row skipped", slog.String("subject", subject), slog.String("reason", msg))
		}
		catalogs[subject] = result.Items
		log.Info("catalog loaded", slog.String("subject", subject), slog.Int("items", len(result.Items)))
	}
	return catalogs, nil
}

// retentionScale stretches or shrinks intervals to fit the days left before the exam, if one is set
func retentionScale(cfg config.SRSConfig, now time.Time) float64 {
	exam, ok := cfg.Exam()
	if !ok {
		return cfg.RetentionScale
	}
	days := int(math.Ceil(exam.Sub(now).Hours() / 24))
	return sr.RetentionScaleForTarget(days)
}
