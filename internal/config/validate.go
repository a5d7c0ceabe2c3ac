package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Validate performs business-rule validation on the loaded configuration.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("%w: telegram.token is required", ErrInvalid)
	}
	if c.Telegram.OwnerID == 0 {
		return fmt.Errorf("%w: telegram.owner_id is required", ErrInvalid)
	}

	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("%w: database.driver must be sqlite3 or postgres (got %q)", ErrInvalid, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn is required", ErrInvalid)
	}

	if err := c.Scheduler.validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := c.SRS.validate(); err != nil {
		return fmt.Errorf("srs: %w", err)
	}
	if c.API.Enabled && c.API.Addr == "" {
		return fmt.Errorf("%w: api.addr is required when the api is enabled", ErrInvalid)
	}
	return nil
}

func (s *SchedulerConfig) validate() error {
	if s.StartHour < 0 || s.StartHour > 23 {
		return fmt.Errorf("%w: start_hour must be within 0-23 (got %d)", ErrInvalid, s.StartHour)
	}
	if s.EndHour < 0 || s.EndHour > 23 {
		return fmt.Errorf("%w: end_hour must be within 0-23 (got %d)", ErrInvalid, s.EndHour)
	}
	if s.Enabled && s.Interval <= 0 {
		return fmt.Errorf("%w: interval must be > 0 (got %v)", ErrInvalid, s.Interval)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalid, s.Timezone, err)
	}
	return nil
}

func (s *SRSConfig) validate() error {
	if s.DueSoonWindow < 0 {
		return fmt.Errorf("%w: due_soon_window must be >= 0 (got %v)", ErrInvalid, s.DueSoonWindow)
	}
	if s.MaxInterval <= 0 {
		return fmt.Errorf("%w: max_interval must be > 0 (got %v)", ErrInvalid, s.MaxInterval)
	}
	if s.DefaultQuestions < 0 {
		return fmt.Errorf("%w: default_questions must be >= 0 (got %d)", ErrInvalid, s.DefaultQuestions)
	}
	if s.ExamDate != "" {
		if _, err := time.Parse(ExamDateLayout, s.ExamDate); err != nil {
			return fmt.Errorf("%w: exam_date must look like %s (got %q)", ErrInvalid, ExamDateLayout, s.ExamDate)
		}
	}
	return nil
}
