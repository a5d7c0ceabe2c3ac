package quiz

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sr "github.com/example/studybot/internal/spaced_repetition"
	"github.com/example/studybot/pkg/models"
)

const subject = "english"

var testNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newTracker() *sr.Tracker {
	return sr.NewTracker(sr.NewPolicy(), sr.WithClock(func() time.Time { return testNow }))
}

func newBuilder(tr *sr.Tracker) *Builder {
	return NewBuilder(tr, rand.New(rand.NewSource(42)))
}

func catalogOf(n int) []models.VocabularyItem {
	out := make([]models.VocabularyItem, n)
	for i := range out {
		out[i] = models.VocabularyItem{
			ID:      fmt.Sprintf("w%03d", i),
			Term:    fmt.Sprintf("term %d", i),
			Meaning: fmt.Sprintf("meaning %d", i),
		}
	}
	return out
}

// setLevels loads records so that the given items sit at level
func setLevels(tr *sr.Tracker, catalog []models.VocabularyItem, levels map[string]models.MasteryLevel) {
	recs := make(map[string]models.MasteryRecord, len(levels))
	i := 0
	for id, level := range levels {
		recs[id] = models.MasteryRecord{
			Mastery:        level,
			TotalAttempts:  1,
			LastAnsweredAt: testNow.Add(-time.Duration(i+1) * time.Hour),
			NextDueAt:      testNow,
		}
		i++
	}
	tr.Load(subject, recs)
}

func assertUnique(t *testing.T, items []models.VocabularyItem) {
	t.Helper()
	seen := map[string]bool{}
	for _, it := range items {
		require.False(t, seen[it.ID], "duplicate item %s", it.ID)
		seen[it.ID] = true
	}
}

func TestBuildSessionSizeBound(t *testing.T) {
	catalog := catalogOf(40)
	tr := newTracker()
	levels := map[string]models.MasteryLevel{}
	for i, it := range catalog[:25] {
		levels[it.ID] = models.MasteryLevels[1+i%4]
	}
	setLevels(tr, catalog, levels)
	b := newBuilder(tr)

	for _, n := range []int{1, 3, 5, 10, 13, 40, 41, 100} {
		t.Run(fmt.Sprintf("desired %d", n), func(t *testing.T) {
			got := b.BuildSession(SessionRequest{Catalog: catalog, Subject: subject, DesiredCount: n})
			assert.Len(t, got, min(n, len(catalog)))
			assertUnique(t, got)
		})
	}
}

func TestBuildSessionAll(t *testing.T) {
	catalog := catalogOf(23)
	tr := newTracker()
	setLevels(tr, catalog, map[string]models.MasteryLevel{
		"w000": models.MasteryWeak,
		"w001": models.MasteryMastered,
		"w002": models.MasteryAlmost,
	})

	got := newBuilder(tr).BuildSession(SessionRequest{Catalog: catalog, Subject: subject})
	assert.Len(t, got, len(catalog))
	assertUnique(t, got)
}

func TestBuildSessionEmpty(t *testing.T) {
	b := newBuilder(newTracker())

	got := b.BuildSession(SessionRequest{Subject: subject, DesiredCount: 10})
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = b.BuildSession(SessionRequest{Catalog: catalogOf(10), Subject: subject, DesiredCount: 10, Mode: ModeWeakOnly})
	assert.Empty(t, got, "nothing is weak yet")
}

func TestBuildSessionQuotaMixing(t *testing.T) {
	catalog := catalogOf(100)
	tr := newTracker()
	levels := map[string]models.MasteryLevel{}
	for _, it := range catalog[:20] {
		levels[it.ID] = models.MasteryWeak
	}
	setLevels(tr, catalog, levels)

	got := newBuilder(tr).BuildSession(SessionRequest{Catalog: catalog, Subject: subject, DesiredCount: 10})
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 10)

	var weak, fresh int
	for _, it := range got {
		switch tr.GetMastery(subject, it.ID) {
		case models.MasteryWeak:
			weak++
		case models.MasteryNew:
			fresh++
		}
	}
	assert.Positive(t, weak)
	assert.Positive(t, fresh)
}

func TestCandidatePoolQuotas(t *testing.T) {
	catalog := catalogOf(100)
	tr := newTracker()
	levels := map[string]models.MasteryLevel{}
	for _, it := range catalog[:20] {
		levels[it.ID] = models.MasteryWeak
	}
	setLevels(tr, catalog, levels)
	b := newBuilder(tr)

	pool := b.CandidatePool(catalog, subject, 10)
	require.Len(t, pool, 30)
	assertUnique(t, pool)

	var fresh int
	for _, it := range pool {
		if tr.GetMastery(subject, it.ID) == models.MasteryNew {
			fresh++
		}
	}
	assert.Equal(t, 15, fresh)
	assert.Equal(t, models.MasteryWeak, tr.GetMastery(subject, pool[0].ID), "reviews lead the pool")
	assert.Equal(t, models.MasteryNew, tr.GetMastery(subject, pool[1].ID))
}

func TestCandidatePoolBackfill(t *testing.T) {
	catalog := catalogOf(12)
	tr := newTracker()
	setLevels(tr, catalog, map[string]models.MasteryLevel{
		"w000": models.MasteryLearning,
		"w001": models.MasteryAlmost,
	})
	b := newBuilder(tr)

	// 10 new items, only 2 reviews: new items fill the remaining slots
	pool := b.CandidatePool(catalog, subject, 4)
	assert.Len(t, pool, 12)
	assertUnique(t, pool)

	// everything reviewed, no new items
	all := map[string]models.MasteryLevel{}
	for _, it := range catalog {
		all[it.ID] = models.MasteryLearning
	}
	setLevels(tr, catalog, all)
	pool = b.CandidatePool(catalog, subject, 2)
	assert.Len(t, pool, 6)
}

func TestBuildSessionModes(t *testing.T) {
	catalog := catalogOf(8)
	tr := newTracker()
	setLevels(tr, catalog, map[string]models.MasteryLevel{
		"w000": models.MasteryWeak,
		"w001": models.MasteryWeak,
		"w002": models.MasteryMastered,
		"w003": models.MasteryMastered,
		"w004": models.MasteryAlmost,
	})
	b := newBuilder(tr)

	weakOnly := b.BuildSession(SessionRequest{Catalog: catalog, Subject: subject, Mode: ModeWeakOnly})
	assert.ElementsMatch(t, []string{"w000", "w001"}, idsOf(weakOnly))

	special := b.BuildSession(SessionRequest{Catalog: catalog, Subject: subject, Mode: ModeSpecialTraining})
	assert.Len(t, special, 6)
	for _, it := range special {
		assert.NotEqual(t, models.MasteryMastered, tr.GetMastery(subject, it.ID))
	}

	filtered := b.BuildSession(SessionRequest{
		Catalog: catalog,
		Subject: subject,
		Filters: Filters{MasteryLevels: []models.MasteryLevel{models.MasteryAlmost, models.MasteryMastered}},
	})
	assert.ElementsMatch(t, []string{"w002", "w003", "w004"}, idsOf(filtered))
}

func TestBuildSessionRespectsHistory(t *testing.T) {
	catalog := catalogOf(6)
	tr := newTracker()
	for _, it := range catalog[:3] {
		tr.RecordAnswer(subject, it.ID, true, sr.AnswerOptions{SessionSeq: 4, ResponseTime: time.Second})
	}
	tr.RecordAnswer(subject, "w003", false, sr.AnswerOptions{SessionSeq: 4, ResponseTime: time.Second})
	b := newBuilder(tr)

	got := b.BuildSession(SessionRequest{Catalog: catalog, Subject: subject, DesiredCount: 3, SessionSeq: 5})
	require.Len(t, got, 3)
	assert.ElementsMatch(t, []string{"w003", "w004", "w005"}, idsOf(got), "fluent items are held back")

	got = b.BuildSession(SessionRequest{Catalog: catalog, Subject: subject, DesiredCount: 5, SessionSeq: 5})
	assert.Len(t, got, 5, "held back items still fill the session")
	assertUnique(t, got)
}

func TestTopUp(t *testing.T) {
	catalog := catalogOf(6)
	tr := newTracker()
	setLevels(tr, catalog, map[string]models.MasteryLevel{"w005": models.MasteryWeak})
	b := newBuilder(tr)

	got := b.TopUp(catalog[:2], catalog, subject, 4)
	assert.Equal(t, []string{"w000", "w001", "w005", "w002"}, idsOf(got))

	got = b.TopUp(catalog, catalog, subject, 3)
	assert.Len(t, got, 3)

	got = b.TopUp(append(catalog[:1:1], catalog[0]), catalog, subject, 0)
	assert.Len(t, got, 6)
	assertUnique(t, got)
}

func TestBuildSessionDueReview(t *testing.T) {
	catalog := catalogOf(6)
	tr := newTracker()
	tr.Load(subject, map[string]models.MasteryRecord{
		"w000": {Mastery: models.MasteryMastered, CorrectStreak: 5, NextDueAt: testNow.Add(30 * 24 * time.Hour)},
		"w003": {Mastery: models.MasteryAlmost, NextDueAt: testNow.Add(time.Hour)},
		"w005": {Mastery: models.MasteryWeak, NextDueAt: testNow.Add(-time.Hour)},
	})
	b := newBuilder(tr)

	got := b.BuildSession(SessionRequest{Catalog: catalog, Subject: subject, DesiredCount: 3, Mode: ModeDueReview, SessionSeq: 7})
	assert.Equal(t, []string{"w005", "w003", "w001"}, idsOf(got), "due items first, then new items by priority")

	got = b.BuildSession(SessionRequest{Catalog: catalog, Subject: subject, DesiredCount: 1, Mode: ModeDueReview})
	assert.Equal(t, []string{"w005"}, idsOf(got))

	all := b.BuildSession(SessionRequest{Catalog: catalog, Subject: subject, Mode: ModeDueReview})
	require.Len(t, all, 6)
	assert.Equal(t, []string{"w005", "w003"}, idsOf(all[:2]))
	assert.Equal(t, "w000", all[5].ID, "mastered item that is not due comes last")
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeNormal, false},
		{"normal", ModeNormal, false},
		{"weak", ModeWeakOnly, false},
		{"special", ModeSpecialTraining, false},
		{"due", ModeDueReview, false},
		{"waek", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func idsOf(items []models.VocabularyItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
