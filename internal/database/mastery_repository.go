package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/example/studybot/pkg/models"
)

const masteryTable = "mastery_records"

var masteryColumns = []string{
	"subject",
	"word_id",
	"mastery",
	"correct_streak",
	"total_attempts",
	"correct_attempts",
	"last_answered_at",
	"next_due_at",
	"last_chosen_answer_text",
	"last_correct_answer_text",
	"last_answer_was_correct",
	"session_id",
	"history",
}

const masteryUpsertSuffix = `ON CONFLICT (subject, word_id) DO UPDATE SET
	mastery = excluded.mastery,
	correct_streak = excluded.correct_streak,
	total_attempts = excluded.total_attempts,
	correct_attempts = excluded.correct_attempts,
	last_answered_at = excluded.last_answered_at,
	next_due_at = excluded.next_due_at,
	last_chosen_answer_text = excluded.last_chosen_answer_text,
	last_correct_answer_text = excluded.last_correct_answer_text,
	last_answer_was_correct = excluded.last_answer_was_correct,
	session_id = excluded.session_id,
	history = excluded.history,
	updated_at = CURRENT_TIMESTAMP`

// masteryRow is the stored form of a mastery record
type masteryRow struct {
	Subject               string    `db:"subject"`
	WordID                string    `db:"word_id"`
	Mastery               string    `db:"mastery"`
	CorrectStreak         int       `db:"correct_streak"`
	TotalAttempts         int       `db:"total_attempts"`
	CorrectAttempts       int       `db:"correct_attempts"`
	LastAnsweredAt        time.Time `db:"last_answered_at"`
	NextDueAt             time.Time `db:"next_due_at"`
	LastChosenAnswerText  string    `db:"last_chosen_answer_text"`
	LastCorrectAnswerText string    `db:"last_correct_answer_text"`
	LastAnswerWasCorrect  bool      `db:"last_answer_was_correct"`
	SessionID             string    `db:"session_id"`
	History               string    `db:"history"`
}

func (r masteryRow) toModel() (models.MasteryRecord, error) {
	rec := models.MasteryRecord{
		Subject:               r.Subject,
		WordID:                r.WordID,
		Mastery:               models.ParseMasteryLevel(r.Mastery),
		CorrectStreak:         r.CorrectStreak,
		TotalAttempts:         r.TotalAttempts,
		CorrectAttempts:       r.CorrectAttempts,
		LastAnsweredAt:        r.LastAnsweredAt.UTC(),
		NextDueAt:             r.NextDueAt.UTC(),
		LastChosenAnswerText:  r.LastChosenAnswerText,
		LastCorrectAnswerText: r.LastCorrectAnswerText,
		LastAnswerWasCorrect:  r.LastAnswerWasCorrect,
		SessionID:             r.SessionID,
	}
	if r.History != "" && r.History != "[]" {
		if err := json.Unmarshal([]byte(r.History), &rec.History); err != nil {
			return rec, fmt.Errorf("failed to decode history of %s/%s: %w", r.Subject, r.WordID, err)
		}
	}
	return rec, nil
}

func rowValues(rec models.MasteryRecord) ([]interface{}, error) {
	history := []byte("[]")
	if len(rec.History) > 0 {
		var err error
		history, err = json.Marshal(rec.History)
		if err != nil {
			return nil, fmt.Errorf("failed to encode history of %s/%s: %w", rec.Subject, rec.WordID, err)
		}
	}
	return []interface{}{
		rec.Subject,
		rec.WordID,
		rec.Mastery.String(),
		rec.CorrectStreak,
		rec.TotalAttempts,
		rec.CorrectAttempts,
		rec.LastAnsweredAt.UTC(),
		rec.NextDueAt.UTC(),
		rec.LastChosenAnswerText,
		rec.LastCorrectAnswerText,
		rec.LastAnswerWasCorrect,
		rec.SessionID,
		string(history),
	}, nil
}

// MasteryRepository persists mastery records
type MasteryRepository struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

// NewMasteryRepository creates a new repository instance
func NewMasteryRepository(db *sqlx.DB) *MasteryRepository {
	return &MasteryRepository{db: db, sb: statementBuilder(db)}
}

// Load returns the subject's records keyed by word ID
func (r *MasteryRepository) Load(ctx context.Context, subject string) (map[string]models.MasteryRecord, error) {
	query, args, err := r.sb.Select(masteryColumns...).
		From(masteryTable).
		Where(sq.Eq{"subject": subject}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []masteryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load mastery records: %w", err)
	}

	out := make(map[string]models.MasteryRecord, len(rows))
	for _, row := range rows {
		rec, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out[rec.WordID] = rec
	}
	return out, nil
}

// LoadAll returns every record keyed by subject, then word ID
func (r *MasteryRepository) LoadAll(ctx context.Context) (map[string]map[string]models.MasteryRecord, error) {
	query, args, err := r.sb.Select(masteryColumns...).From(masteryTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []masteryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load mastery records: %w", err)
	}

	out := make(map[string]map[string]models.MasteryRecord)
	for _, row := range rows {
		rec, err := row.toModel()
		if err != nil {
			return nil, err
		}
		if out[rec.Subject] == nil {
			out[rec.Subject] = make(map[string]models.MasteryRecord)
		}
		out[rec.Subject][rec.WordID] = rec
	}
	return out, nil
}

// Upsert creates or updates a single record
func (r *MasteryRepository) Upsert(ctx context.Context, rec models.MasteryRecord) error {
	return r.upsert(ctx, r.db, rec)
}

// Save replaces the subject's stored records with records in one transaction
func (r *MasteryRepository) Save(ctx context.Context, subject string, records map[string]models.MasteryRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := r.sb.Delete(masteryTable).Where(sq.Eq{"subject": subject}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear mastery records: %w", err)
	}

	for wordID, rec := range records {
		rec.Subject = subject
		rec.WordID = wordID
		if err := r.upsert(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mastery records: %w", err)
	}
	return nil
}

// DeleteAll removes every record of every subject
func (r *MasteryRepository) DeleteAll(ctx context.Context) error {
	query, args, err := r.sb.Delete(masteryTable).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete mastery records: %w", err)
	}
	return nil
}

func (r *MasteryRepository) upsert(ctx context.Context, exec sqlx.ExecerContext, rec models.MasteryRecord) error {
	values, err := rowValues(rec)
	if err != nil {
		return err
	}
	query, args, err := r.sb.Insert(masteryTable).
		Columns(masteryColumns...).
		Values(values...).
		Suffix(masteryUpsertSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save mastery record %s/%s: %w", rec.Subject, rec.WordID, err)
	}
	return nil
}
