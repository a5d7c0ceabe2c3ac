package spaced_repetition

import (
	"sort"
	"sync"
	"time"

	"github.com/example/studybot/pkg/models"
)

// historyLimit is the number of sessions remembered per item
const historyLimit = 20

// AnswerOptions carries the optional details of a single answer
type AnswerOptions struct {
	ResponseTime      time.Duration
	BlankCount        int
	SessionID         string
	SessionSeq        int
	ChosenAnswerText  string
	CorrectAnswerText string
}

// Stats counts tracked items per mastery level
type Stats map[models.MasteryLevel]int

// Total returns the number of tracked items
func (s Stats) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// WithCatalogSize returns a copy where every catalog item without a record is counted as new
func (s Stats) WithCatalogSize(catalogSize int) Stats {
	out := make(Stats, len(models.MasteryLevels))
	for _, level := range models.MasteryLevels {
		out[level] = s[level]
	}
	if untracked := catalogSize - s.Total(); untracked > 0 {
		out[models.MasteryNew] += untracked
	}
	return out
}

// Tracker keeps mastery records per subject and answers scheduling queries.
// It performs no I/O; load and persist records through a repository.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]map[string]*models.MasteryRecord
	policy  *Policy
	now     func() time.Time
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates an empty tracker. A nil policy falls back to NewPolicy().
func NewTracker(policy *Policy, opts ...Option) *Tracker {
	if policy == nil {
		policy = NewPolicy()
	}
	t := &Tracker{
		records: make(map[string]map[string]*models.MasteryRecord),
		policy:  policy,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Policy returns the policy in use
func (t *Tracker) Policy() *Policy {
	return t.policy
}

// RecordAnswer applies one answer to the item's record, creating it if needed.
// Empty subjects or word IDs are ignored and report false.
func (t *Tracker) RecordAnswer(subject, wordID string, isCorrect bool, opts AnswerOptions) (models.MasteryRecord, bool) {
	if subject == "" || wordID == "" {
		return models.MasteryRecord{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	bySubject, ok := t.records[subject]
	if !ok {
		bySubject = make(map[string]*models.MasteryRecord)
		t.records[subject] = bySubject
	}
	rec, ok := bySubject[wordID]
	if !ok {
		rec = &models.MasteryRecord{Subject: subject, WordID: wordID, Mastery: models.MasteryNew}
		bySubject[wordID] = rec
	}

	rec.TotalAttempts++
	if isCorrect {
		rec.CorrectAttempts++
		rec.CorrectStreak++
	} else {
		rec.CorrectStreak = 0
	}
	rec.Mastery = NextLevel(rec.Mastery, isCorrect)

	rec.LastAnsweredAt = now
	rec.NextDueAt = now.Add(t.policy.Interval(rec.Mastery, rec.CorrectStreak, opts.BlankCount))

	rec.LastChosenAnswerText = opts.ChosenAnswerText
	rec.LastCorrectAnswerText = opts.CorrectAnswerText
	rec.LastAnswerWasCorrect = isCorrect
	rec.SessionID = opts.SessionID

	if opts.SessionSeq > 0 {
		rec.History = addSessionResult(rec.History, models.SessionResult{
			Seq:          opts.SessionSeq,
			Correct:      isCorrect,
			ResponseTime: opts.ResponseTime,
			AnsweredAt:   now,
		})
	}

	return cloneRecord(rec), true
}

// addSessionResult replaces the entry for the same session and keeps only the latest historyLimit sessions
func addSessionResult(history []models.SessionResult, res models.SessionResult) []models.SessionResult {
	out := make([]models.SessionResult, 0, len(history)+1)
	for _, h := range history {
		if h.Seq != res.Seq {
			out = append(out, h)
		}
	}
	out = append(out, res)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if len(out) > historyLimit {
		out = out[len(out)-historyLimit:]
	}
	return out
}

// GetMastery returns the item's level, or MasteryNew when it has never been answered
func (t *Tracker) GetMastery(subject, wordID string) models.MasteryLevel {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if rec, ok := t.records[subject][wordID]; ok {
		return rec.Mastery
	}
	return models.MasteryNew
}

// GetRecord returns a copy of the item's record
func (t *Tracker) GetRecord(subject, wordID string) (models.MasteryRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[subject][wordID]
	if !ok {
		return models.MasteryRecord{}, false
	}
	return cloneRecord(rec), true
}

// GetStats counts the subject's records per level. Every level is present.
func (t *Tracker) GetStats(subject string) Stats {
	stats := make(Stats, len(models.MasteryLevels))
	for _, level := range models.MasteryLevels {
		stats[level] = 0
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, rec := range t.records[subject] {
		stats[rec.Mastery]++
	}
	return stats
}

// GetReviewCandidates returns the answered items that are due, most overdue first.
// With includeDueSoon, items falling due within the policy's DueSoonWindow are included too.
func (t *Tracker) GetReviewCandidates(allItems []models.VocabularyItem, subject string, includeDueSoon bool) []models.VocabularyItem {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := t.now()
	if includeDueSoon {
		cutoff = cutoff.Add(t.policy.DueSoonWindow)
	}

	type candidate struct {
		item models.VocabularyItem
		rec  *models.MasteryRecord
	}
	var due []candidate
	for _, item := range allItems {
		rec, ok := t.records[subject][item.ID]
		if !ok || rec.Mastery == models.MasteryNew {
			continue
		}
		if !rec.NextDueAt.After(cutoff) {
			due = append(due, candidate{item: item, rec: rec})
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].rec, due[j].rec
		if !a.NextDueAt.Equal(b.NextDueAt) {
			return a.NextDueAt.Before(b.NextDueAt)
		}
		return a.Mastery < b.Mastery
	})

	out := make([]models.VocabularyItem, len(due))
	for i, c := range due {
		out[i] = c.item
	}
	return out
}

// SortByPriority orders items for practice: weak, new, learning, almost, mastered,
// then the longest since last answered. Untracked items keep their catalog order.
func (t *Tracker) SortByPriority(items []models.VocabularyItem, subject string) []models.VocabularyItem {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.VocabularyItem, len(items))
	copy(out, items)
	bySubject := t.records[subject]

	sort.SliceStable(out, func(i, j int) bool {
		a, aok := bySubject[out[i].ID]
		b, bok := bySubject[out[j].ID]
		ra, rb := priorityRank(models.MasteryNew), priorityRank(models.MasteryNew)
		if aok {
			ra = priorityRank(a.Mastery)
		}
		if bok {
			rb = priorityRank(b.Mastery)
		}
		if ra != rb {
			return ra < rb
		}
		if aok && bok && !a.LastAnsweredAt.Equal(b.LastAnsweredAt) {
			return a.LastAnsweredAt.Before(b.LastAnsweredAt)
		}
		return false
	})
	return out
}

// Load replaces the subject's records, keyed by word ID
func (t *Tracker) Load(subject string, records map[string]models.MasteryRecord) {
	bySubject := make(map[string]*models.MasteryRecord, len(records))
	for wordID, rec := range records {
		rec := cloneRecord(&rec)
		rec.Subject = subject
		rec.WordID = wordID
		bySubject[wordID] = &rec
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[subject] = bySubject
}

// Snapshot returns a copy of the subject's records, keyed by word ID
func (t *Tracker) Snapshot(subject string) map[string]models.MasteryRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]models.MasteryRecord, len(t.records[subject]))
	for wordID, rec := range t.records[subject] {
		out[wordID] = cloneRecord(rec)
	}
	return out
}

// Subjects lists the subjects with at least one record, sorted
func (t *Tracker) Subjects() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	subjects := make([]string, 0, len(t.records))
	for s, recs := range t.records {
		if len(recs) > 0 {
			subjects = append(subjects, s)
		}
	}
	sort.Strings(subjects)
	return subjects
}

// Reset drops every record
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = make(map[string]map[string]*models.MasteryRecord)
}

func cloneRecord(rec *models.MasteryRecord) models.MasteryRecord {
	out := *rec
	if rec.History != nil {
		out.History = append([]models.SessionResult(nil), rec.History...)
	}
	return out
}
