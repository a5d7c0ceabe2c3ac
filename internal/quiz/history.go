package quiz

import (
	"time"

	"github.com/example/studybot/pkg/models"
)

const (
	// fastAnswer is the response time under which a correct answer counts as fluent
	fastAnswer = 5 * time.Second
	// slowRecallGap is how many sessions a correct but slow item waits before it comes back
	slowRecallGap = 2
)

// SelectWithHistory holds back items the learner answered well in recent sessions.
//
// Items with no session history or whose last session answer was wrong come first,
// followed by correct-but-slow items whose waiting period has passed. Fluent items
// are only used to fill up to count. Order within each group is preserved.
func SelectWithHistory(words []models.VocabularyItem, count int, subject string, currentSeq int, tracker MasteryReader) []models.VocabularyItem {
	var immediate, delayed, excluded []models.VocabularyItem

	for _, word := range words {
		rec, ok := tracker.GetRecord(subject, word.ID)
		if !ok {
			immediate = append(immediate, word)
			continue
		}
		last, ok := rec.LatestSession()
		if !ok {
			immediate = append(immediate, word)
			continue
		}

		switch {
		case last.Correct && last.ResponseTime < fastAnswer:
			excluded = append(excluded, word)
		case last.Correct:
			if currentSeq >= last.Seq+slowRecallGap {
				delayed = append(delayed, word)
			} else {
				excluded = append(excluded, word)
			}
		default:
			immediate = append(immediate, word)
		}
	}

	out := append(immediate, delayed...)
	if len(out) < count {
		out = append(out, excluded[:min(len(excluded), count-len(out))]...)
	}
	if len(out) > count {
		out = out[:count]
	}
	return out
}
