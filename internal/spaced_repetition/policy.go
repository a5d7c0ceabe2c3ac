package spaced_repetition

import (
	"math"
	"time"

	"github.com/example/studybot/pkg/models"
)

// Policy holds the mastery transition and forgetting-curve settings
type Policy struct {
	// Base intervals keyed by the level an item lands on after an answer
	WeakInterval     time.Duration
	LearningInterval time.Duration
	AlmostInterval   time.Duration
	MasteredInterval time.Duration
	// Growth applied per correct answer beyond MasteredStreak while mastered
	MasteredGrowth float64
	// Streak at which an item first reaches mastered when answered straight through
	MasteredStreak int
	// Upper bound for any interval before blank and retention scaling
	MaxInterval time.Duration
	// Extra credit per additional blank in a multi-blank question
	BlankBonus float64
	// Stretches or compresses every interval, e.g. for an upcoming exam date
	RetentionScale float64
	// Look-ahead used by GetReviewCandidates when due-soon items are requested
	DueSoonWindow time.Duration
}

// NewPolicy returns the default policy
func NewPolicy() *Policy {
	return &Policy{
		WeakInterval:     4 * time.Hour,
		LearningInterval: 24 * time.Hour,
		AlmostInterval:   3 * 24 * time.Hour,
		MasteredInterval: 7 * 24 * time.Hour,
		MasteredGrowth:   1.5,
		MasteredStreak:   3,
		MaxInterval:      90 * 24 * time.Hour,
		BlankBonus:       0.5,
		RetentionScale:   1.0,
		DueSoonWindow:    2 * time.Hour,
	}
}

const (
	minRetentionScale = 0.2
	maxRetentionScale = 10.0
)

// RetentionScaleForTarget derives a retention scale from the number of days left until a target date.
// A week away keeps the default intervals.
func RetentionScaleForTarget(daysUntilTarget int) float64 {
	if daysUntilTarget < 1 {
		daysUntilTarget = 1
	}
	return clampScale(float64(daysUntilTarget) / 7.0)
}

func clampScale(s float64) float64 {
	if s <= 0 || math.IsNaN(s) {
		return 1.0
	}
	return math.Max(minRetentionScale, math.Min(maxRetentionScale, s))
}

// NextLevel returns the level reached after answering an item currently at level
func NextLevel(level models.MasteryLevel, correct bool) models.MasteryLevel {
	if !correct {
		return models.MasteryWeak
	}
	switch level {
	case models.MasteryNew, models.MasteryWeak:
		return models.MasteryLearning
	case models.MasteryLearning:
		return models.MasteryAlmost
	default:
		return models.MasteryMastered
	}
}

// Interval computes how long an item stays out of the review queue.
// level is the level after the update and streak the correct streak after the update.
func (p *Policy) Interval(level models.MasteryLevel, streak, blankCount int) time.Duration {
	var base time.Duration
	switch level {
	case models.MasteryNew:
		return 0
	case models.MasteryWeak:
		base = p.WeakInterval
	case models.MasteryLearning:
		base = p.LearningInterval
	case models.MasteryAlmost:
		base = p.AlmostInterval
	case models.MasteryMastered:
		extra := streak - p.MasteredStreak
		if extra < 0 {
			extra = 0
		}
		growth := math.Pow(p.MasteredGrowth, float64(extra))
		base = scaleDuration(p.MasteredInterval, growth, p.MaxInterval)
	}
	if p.MaxInterval > 0 && base > p.MaxInterval {
		base = p.MaxInterval
	}

	if blankCount < 1 {
		blankCount = 1
	}
	factor := (1 + p.BlankBonus*float64(blankCount-1)) * clampScale(p.RetentionScale)
	return scaleDuration(base, factor, 0)
}

// scaleDuration multiplies d by f, saturating at limit (or at the largest Duration when limit is 0)
func scaleDuration(d time.Duration, f float64, limit time.Duration) time.Duration {
	if limit <= 0 {
		limit = time.Duration(math.MaxInt64)
	}
	scaled := float64(d) * f
	if math.IsInf(scaled, 0) || scaled >= float64(limit) {
		return limit
	}
	return time.Duration(scaled)
}

// priorityRank orders levels for practice: weak first, then unseen, then by proficiency
func priorityRank(level models.MasteryLevel) int {
	switch level {
	case models.MasteryWeak:
		return 0
	case models.MasteryNew:
		return 1
	case models.MasteryLearning:
		return 2
	case models.MasteryAlmost:
		return 3
	default:
		return 4
	}
}
