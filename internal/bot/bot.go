package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/studybot/internal/quiz"
	sr "github.com/example/studybot/internal/spaced_repetition"
	"github.com/example/studybot/pkg/models"
)

// sessionSeqCounter names the persisted counter numbering quiz sessions
const sessionSeqCounter = "session_seq"

// Client is the part of the Telegram API the bot uses. *tgbotapi.BotAPI satisfies it.
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// MasteryStore persists mastery records
type MasteryStore interface {
	Upsert(ctx context.Context, rec models.MasteryRecord) error
	Save(ctx context.Context, subject string, records map[string]models.MasteryRecord) error
	DeleteAll(ctx context.Context) error
}

// CounterStore hands out persistent session sequence numbers
type CounterStore interface {
	Increment(ctx context.Context, name string) (int64, error)
}

// MenuButton represents a button in an inline keyboard
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// Bot is the Telegram front end of the quiz.
// HandleUpdate may be called from several goroutines; updates are handled one at a time.
type Bot struct {
	api      Client
	cfg      Config
	tracker  *sr.Tracker
	builder  *quiz.Builder
	catalogs map[string][]models.VocabularyItem
	store    MasteryStore
	counters CounterStore
	log      *slog.Logger
	now      func() time.Time

	// handling serializes HandleUpdate. Quiz sessions are only changed while it is held.
	handling sync.Mutex
	mu       sync.Mutex
	sessions map[int64]*quizSession // keyed by chat ID
}

// Option configures a Bot
type Option func(*Bot)

// WithClock replaces the clock used to measure response times
func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

// New creates a new bot instance
func New(api Client, cfg Config, tracker *sr.Tracker, builder *quiz.Builder, catalogs map[string][]models.VocabularyItem,
	store MasteryStore, counters CounterStore, log *slog.Logger, opts ...Option) *Bot {
	if log == nil {
		log = slog.Default()
	}
	b := &Bot{
		api:      api,
		cfg:      cfg,
		tracker:  tracker,
		builder:  builder,
		catalogs: catalogs,
		store:    store,
		counters: counters,
		log:      log.With(slog.String("component", "bot")),
		now:      time.Now,
		sessions: make(map[int64]*quizSession),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start polls Telegram for updates and handles them until ctx is done
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.cfg.PollTimeout

	updates := b.api.GetUpdatesChan(updateConfig)
	b.log.InfoContext(ctx, "bot started", slog.Int64("owner_id", b.cfg.OwnerID))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.InfoContext(ctx, "bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// SendReminders implements the scheduler.Notifier interface
func (b *Bot) SendReminders(ctx context.Context, subject string, count int) error {
	wordForm := "items"
	if count == 1 {
		wordForm = "item"
	}

	msg := tgbotapi.NewMessage(b.cfg.OwnerID, fmt.Sprintf("⏰ %d %s of %s due for review.", count, wordForm, subject))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "🎯 Review now", CallbackData: callbackDuePrefix + subject}},
	})
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	return nil
}

// HandleUpdate handles a single incoming update
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.handling.Lock()
	defer b.handling.Unlock()

	switch {
	case update.Message != nil:
		if !b.isOwner(update.Message.From) {
			b.reply(ctx, update.Message.Chat.ID, "This bot is private.")
			return
		}
		if update.Message.IsCommand() {
			b.handleCommand(ctx, update.Message)
			return
		}
		b.reply(ctx, update.Message.Chat.ID, "I don't understand. Use /help to see the commands.")
	case update.CallbackQuery != nil:
		if !b.isOwner(update.CallbackQuery.From) {
			b.answerCallback(ctx, update.CallbackQuery.ID, "This bot is private.")
			return
		}
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

// isOwner checks if a user may use the bot
func (b *Bot) isOwner(user *tgbotapi.User) bool {
	return user != nil && user.ID == b.cfg.OwnerID
}

// subjects returns the loaded subjects, sorted
func (b *Bot) subjects() []string {
	out := make([]string, 0, len(b.catalogs))
	for subject := range b.catalogs {
		out = append(out, subject)
	}
	sort.Strings(out)
	return out
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	b.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(ctx context.Context, msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.ErrorContext(ctx, "failed to send message", slog.String("error", err.Error()))
	}
}

func (b *Bot) answerCallback(ctx context.Context, callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.ErrorContext(ctx, "failed to answer callback", slog.String("error", err.Error()))
	}
}
