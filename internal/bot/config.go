package bot

import (
	"github.com/example/studybot/internal/config"
)

// Config represents the configuration for the bot
type Config struct {
	// Telegram user allowed to talk to the bot. Its private chat receives reminders.
	OwnerID int64
	// Questions per quiz when /quiz is sent without a count. 0 means the whole subject.
	DefaultQuestions int
	// Items listed by /due and /weak
	ListLimit int
	// Timeout in seconds for long polling
	PollTimeout int
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() Config {
	return Config{
		DefaultQuestions: 10,
		ListLimit:        20,
		PollTimeout:      60,
	}
}

// ConfigFrom builds the bot configuration from the application settings
func ConfigFrom(tg config.TelegramConfig, srs config.SRSConfig) Config {
	cfg := DefaultConfig()
	cfg.OwnerID = tg.OwnerID
	cfg.DefaultQuestions = srs.DefaultQuestions
	return cfg
}
