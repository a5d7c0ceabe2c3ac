package models

import (
	"strings"
	"time"
)

// MasteryLevel is the proficiency bucket of a vocabulary item within a subject
type MasteryLevel int

const (
	MasteryNew MasteryLevel = iota
	MasteryWeak
	MasteryLearning
	MasteryAlmost
	MasteryMastered
)

// MasteryLevels lists every level in proficiency order
var MasteryLevels = []MasteryLevel{
	MasteryNew,
	MasteryWeak,
	MasteryLearning,
	MasteryAlmost,
	MasteryMastered,
}

func (l MasteryLevel) String() string {
	switch l {
	case MasteryWeak:
		return "weak"
	case MasteryLearning:
		return "learning"
	case MasteryAlmost:
		return "almost"
	case MasteryMastered:
		return "mastered"
	default:
		return "new"
	}
}

// ParseMasteryLevel converts a level name back to a MasteryLevel. Unknown names map to MasteryNew.
func ParseMasteryLevel(s string) MasteryLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weak":
		return MasteryWeak
	case "learning":
		return MasteryLearning
	case "almost":
		return MasteryAlmost
	case "mastered":
		return MasteryMastered
	default:
		return MasteryNew
	}
}

// MarshalText implements encoding.TextMarshaler
func (l MasteryLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (l *MasteryLevel) UnmarshalText(text []byte) error {
	*l = ParseMasteryLevel(string(text))
	return nil
}

// SessionResult is the outcome of the last answer given for an item in a numbered session
type SessionResult struct {
	Seq          int           `json:"seq"`
	Correct      bool          `json:"correct"`
	ResponseTime time.Duration `json:"response_time"`
	AnsweredAt   time.Time     `json:"answered_at"`
}

// MasteryRecord tracks a learner's history with one vocabulary item of a subject
type MasteryRecord struct {
	Subject               string          `json:"subject" db:"subject"`
	WordID                string          `json:"word_id" db:"word_id"`
	Mastery               MasteryLevel    `json:"mastery" db:"mastery"`
	CorrectStreak         int             `json:"correct_streak" db:"correct_streak"`
	TotalAttempts         int             `json:"total_attempts" db:"total_attempts"`
	CorrectAttempts       int             `json:"correct_attempts" db:"correct_attempts"`
	LastAnsweredAt        time.Time       `json:"last_answered_at" db:"last_answered_at"`
	NextDueAt             time.Time       `json:"next_due_at" db:"next_due_at"`
	LastChosenAnswerText  string          `json:"last_chosen_answer_text,omitempty" db:"last_chosen_answer_text"`
	LastCorrectAnswerText string          `json:"last_correct_answer_text,omitempty" db:"last_correct_answer_text"`
	LastAnswerWasCorrect  bool            `json:"last_answer_was_correct" db:"last_answer_was_correct"`
	SessionID             string          `json:"session_id,omitempty" db:"session_id"`
	History               []SessionResult `json:"history,omitempty" db:"-"`
}

// LatestSession returns the result from the highest numbered session, if any
func (r MasteryRecord) LatestSession() (SessionResult, bool) {
	if len(r.History) == 0 {
		return SessionResult{}, false
	}
	latest := r.History[0]
	for _, h := range r.History[1:] {
		if h.Seq > latest.Seq {
			latest = h
		}
	}
	return latest, true
}
