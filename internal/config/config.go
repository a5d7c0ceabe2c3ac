package config

import "time"

// Config is the root application configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Database  DatabaseConfig  `yaml:"database"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	SRS       SRSConfig       `yaml:"srs"`
	API       APIConfig       `yaml:"api"`
	Log       LogConfig       `yaml:"log"`
}

// TelegramConfig holds bot credentials. Only OwnerID may use the bot.
type TelegramConfig struct {
	Token   string `yaml:"token"    env:"TELEGRAM_BOT_TOKEN"`
	OwnerID int64  `yaml:"owner_id" env:"TELEGRAM_OWNER_ID"`
	Debug   bool   `yaml:"debug"    env:"TELEGRAM_DEBUG" env-default:"false"`
}

// DatabaseConfig selects the store backing mastery records.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite3"`
	DSN    string `yaml:"dsn"    env:"DB_DSN"    env-default:"data/studybot.db"`
}

// CatalogConfig points at the directory of vocabulary spreadsheets, one subject per file.
type CatalogConfig struct {
	Dir string `yaml:"dir" env:"CATALOG_DIR" env-default:"catalog"`
}

// SchedulerConfig controls due-review reminders.
type SchedulerConfig struct {
	Enabled   bool          `yaml:"enabled"    env:"SCHEDULER_ENABLED"       env-default:"true"`
	StartHour int           `yaml:"start_hour" env:"NOTIFICATION_START_HOUR" env-default:"8"`
	EndHour   int           `yaml:"end_hour"   env:"NOTIFICATION_END_HOUR"   env-default:"22"`
	Interval  time.Duration `yaml:"interval"   env:"SCHEDULER_INTERVAL"      env-default:"1h"`
	Timezone  string        `yaml:"timezone"   env:"SCHEDULER_TIMEZONE"      env-default:"UTC"`
}

// SRSConfig holds spaced repetition tuning.
type SRSConfig struct {
	DueSoonWindow    time.Duration `yaml:"due_soon_window"   env:"SRS_DUE_SOON_WINDOW"   env-default:"2h"`
	MaxInterval      time.Duration `yaml:"max_interval"      env:"SRS_MAX_INTERVAL"      env-default:"2160h"`
	RetentionScale   float64       `yaml:"retention_scale"   env:"SRS_RETENTION_SCALE"   env-default:"1"`
	DefaultQuestions int           `yaml:"default_questions" env:"SRS_DEFAULT_QUESTIONS" env-default:"10"`
	// ExamDate (YYYY-MM-DD), when set, overrides RetentionScale with one derived from the days left.
	ExamDate string `yaml:"exam_date" env:"SRS_EXAM_DATE"`
}

// ExamDateLayout is the layout of SRSConfig.ExamDate
const ExamDateLayout = "2006-01-02"

// Exam returns the parsed exam date, if one is configured
func (s SRSConfig) Exam() (time.Time, bool) {
	if s.ExamDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(ExamDateLayout, s.ExamDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// APIConfig holds the read-only HTTP snapshot server settings.
type APIConfig struct {
	Enabled         bool          `yaml:"enabled"          env:"API_ENABLED"          env-default:"false"`
	Addr            string        `yaml:"addr"             env:"API_ADDR"             env-default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"API_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}
