package quiz

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/example/studybot/pkg/models"
)

// Mode narrows the catalog before a session is assembled
type Mode string

const (
	// ModeNormal uses every item that passes the filters
	ModeNormal Mode = "normal"
	// ModeWeakOnly keeps only weak items
	ModeWeakOnly Mode = "weak"
	// ModeSpecialTraining drops mastered items so a run continues until everything is mastered
	ModeSpecialTraining Mode = "special"
	// ModeDueReview starts with the items due now or soon, then tops up by priority
	ModeDueReview Mode = "due"
)

// ErrUnknownMode is returned by ParseMode for words that name no mode
var ErrUnknownMode = errors.New("unknown quiz mode")

// ParseMode maps user input to a Mode. An empty string is ModeNormal.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeNormal:
		return ModeNormal, nil
	case ModeWeakOnly, ModeSpecialTraining, ModeDueReview:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Filters restricts the catalog by mastery level. An empty set keeps every level.
type Filters struct {
	MasteryLevels []models.MasteryLevel
}

func (f Filters) allows(level models.MasteryLevel) bool {
	if len(f.MasteryLevels) == 0 {
		return true
	}
	for _, l := range f.MasteryLevels {
		if l == level {
			return true
		}
	}
	return false
}

// MasteryReader is the part of the mastery tracker a Builder reads from
type MasteryReader interface {
	GetMastery(subject, wordID string) models.MasteryLevel
	GetRecord(subject, wordID string) (models.MasteryRecord, bool)
	SortByPriority(items []models.VocabularyItem, subject string) []models.VocabularyItem
	GetReviewCandidates(allItems []models.VocabularyItem, subject string, includeDueSoon bool) []models.VocabularyItem
}

// Rand is the source of randomness used for shuffling. *rand.Rand satisfies it.
type Rand interface {
	Shuffle(n int, swap func(i, j int))
}

// SessionRequest describes one practice run
type SessionRequest struct {
	Catalog      []models.VocabularyItem
	Subject      string
	DesiredCount int // 0 means every filtered item
	Filters      Filters
	Mode         Mode
	// SessionSeq is the number of the session being built. When positive, items
	// answered well in recent sessions are held back.
	SessionSeq int
}

// Builder assembles practice sessions from a catalog and the learner's mastery state
type Builder struct {
	tracker MasteryReader
	rnd     Rand
}

// NewBuilder creates a builder. A nil rnd uses a time-seeded generator.
func NewBuilder(tracker MasteryReader, rnd Rand) *Builder {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Builder{tracker: tracker, rnd: rnd}
}

const (
	poolMultiplier = 3
	minForcedNew   = 5
	newShare       = 0.5
)

// BuildSession returns the ordered items for one practice run.
// The result never exceeds DesiredCount and is only shorter when the filtered catalog is.
// An empty result means there is nothing to practise.
func (b *Builder) BuildSession(req SessionRequest) []models.VocabularyItem {
	candidates := b.Filter(req.Catalog, req.Subject, req.Filters, req.Mode)
	if len(candidates) == 0 {
		return []models.VocabularyItem{}
	}

	if req.Mode == ModeDueReview {
		due := b.tracker.GetReviewCandidates(candidates, req.Subject, true)
		return b.TopUp(due, candidates, req.Subject, req.DesiredCount)
	}

	pool := b.CandidatePool(candidates, req.Subject, req.DesiredCount)
	if req.DesiredCount > 0 && req.SessionSeq > 0 {
		pool = SelectWithHistory(pool, req.DesiredCount, req.Subject, req.SessionSeq, b.tracker)
	}
	return b.TopUp(pool, candidates, req.Subject, req.DesiredCount)
}

// Filter applies the session mode and mastery filters to the catalog
func (b *Builder) Filter(catalog []models.VocabularyItem, subject string, filters Filters, mode Mode) []models.VocabularyItem {
	out := make([]models.VocabularyItem, 0, len(catalog))
	seen := make(map[string]bool, len(catalog))
	for _, item := range catalog {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true

		level := b.tracker.GetMastery(subject, item.ID)
		switch mode {
		case ModeWeakOnly:
			if level != models.MasteryWeak {
				continue
			}
		case ModeSpecialTraining:
			if level == models.MasteryMastered {
				continue
			}
		}
		if !filters.allows(level) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// CandidatePool draws an oversized, mixed pool of new and review items from the filtered candidates
func (b *Builder) CandidatePool(candidates []models.VocabularyItem, subject string, desiredCount int) []models.VocabularyItem {
	limit := len(candidates)
	if desiredCount > 0 {
		limit = min(len(candidates), max(desiredCount, desiredCount*poolMultiplier))
	}

	var newItems, reviewItems []models.VocabularyItem
	for _, item := range candidates {
		if b.tracker.GetMastery(subject, item.ID) == models.MasteryNew {
			newItems = append(newItems, item)
		} else {
			reviewItems = append(reviewItems, item)
		}
	}
	b.rnd.Shuffle(len(newItems), func(i, j int) {
		newItems[i], newItems[j] = newItems[j], newItems[i]
	})
	reviewItems = b.tracker.SortByPriority(reviewItems, subject)

	forceNew := min(len(newItems), max(minForcedNew, int(float64(limit)*newShare)))
	forceNew = min(forceNew, limit)
	reviewQuota := min(len(reviewItems), limit-forceNew)

	pool := interleave(reviewItems[:reviewQuota], newItems[:forceNew])

	// backfill with unused new items first, then unused reviews
	if len(pool) < limit {
		pool = append(pool, newItems[forceNew:min(len(newItems), forceNew+limit-len(pool))]...)
	}
	if len(pool) < limit {
		pool = append(pool, reviewItems[reviewQuota:min(len(reviewItems), reviewQuota+limit-len(pool))]...)
	}
	return pool
}

// interleave alternates between a and b, starting with a, then appends whatever remains
func interleave(a, b []models.VocabularyItem) []models.VocabularyItem {
	out := make([]models.VocabularyItem, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		if i < len(a) {
			out = append(out, a[i])
			i++
		}
		if j < len(b) {
			out = append(out, b[j])
			j++
		}
	}
	return out
}

// TopUp completes a pre-selected list with the highest priority unused candidates and truncates it to desiredCount
func (b *Builder) TopUp(picked, candidates []models.VocabularyItem, subject string, desiredCount int) []models.VocabularyItem {
	out := make([]models.VocabularyItem, 0, len(picked))
	used := make(map[string]bool, len(picked))
	for _, item := range picked {
		if used[item.ID] {
			continue
		}
		used[item.ID] = true
		out = append(out, item)
	}

	target := desiredCount
	if target <= 0 {
		target = len(candidates)
	}
	if len(out) < target {
		var unused []models.VocabularyItem
		for _, item := range candidates {
			if !used[item.ID] {
				unused = append(unused, item)
			}
		}
		for _, item := range b.tracker.SortByPriority(unused, subject) {
			if len(out) >= target {
				break
			}
			used[item.ID] = true
			out = append(out, item)
		}
	}

	if len(out) > target {
		out = out[:target]
	}
	return out
}
