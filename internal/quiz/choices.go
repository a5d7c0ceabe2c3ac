package quiz

import (
	"strings"

	"github.com/example/studybot/pkg/models"
)

// choiceCount is the number of options offered per question, the answer included
const choiceCount = 4

// placeholderMarkers flag catalog meanings that stand in for missing answer material
var placeholderMarkers = []string{"回答素材", "空欄"}

// Question is a multiple choice question generated for a vocabulary item
type Question struct {
	Item         models.VocabularyItem
	Prompt       string
	Answer       string
	Choices      []string
	CorrectIndex int
}

// IsCorrect reports whether the choice at index is the answer
func (q Question) IsCorrect(index int) bool {
	return index == q.CorrectIndex
}

// BuildQuestions generates one question per item, drawing distractors from catalog
func (b *Builder) BuildQuestions(items, catalog []models.VocabularyItem) []Question {
	questions := make([]Question, 0, len(items))
	for _, item := range items {
		questions = append(questions, b.BuildQuestion(item, catalog))
	}
	return questions
}

// BuildQuestion picks distractors for item, preferring meanings from the same category,
// and shuffles them together with the answer.
func (b *Builder) BuildQuestion(item models.VocabularyItem, catalog []models.VocabularyItem) Question {
	answer := strings.TrimSpace(item.Meaning)
	options := []string{answer}
	seen := map[string]bool{answer: true}

	if item.Category != "" {
		var sameCategory []models.VocabularyItem
		for _, w := range catalog {
			if w.ID != item.ID && w.Category == item.Category {
				sameCategory = append(sameCategory, w)
			}
		}
		options = b.addDistractors(options, seen, sameCategory)
	}

	// Not enough from the same category, use the whole catalog
	if len(options) < choiceCount {
		var others []models.VocabularyItem
		for _, w := range catalog {
			if w.ID != item.ID {
				others = append(others, w)
			}
		}
		options = b.addDistractors(options, seen, others)
	}

	correctIndex := 0
	b.rnd.Shuffle(len(options), func(i, j int) {
		if i == correctIndex {
			correctIndex = j
		} else if j == correctIndex {
			correctIndex = i
		}
		options[i], options[j] = options[j], options[i]
	})

	return Question{
		Item:         item,
		Prompt:       item.Term,
		Answer:       answer,
		Choices:      options,
		CorrectIndex: correctIndex,
	}
}

// addDistractors appends shuffled, valid, unseen meanings from pool until options is full
func (b *Builder) addDistractors(options []string, seen map[string]bool, pool []models.VocabularyItem) []string {
	b.rnd.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	for _, w := range pool {
		if len(options) >= choiceCount {
			break
		}
		meaning := strings.TrimSpace(w.Meaning)
		if seen[meaning] || isInvalidChoice(meaning) {
			continue
		}
		seen[meaning] = true
		options = append(options, meaning)
	}
	return options
}

func isInvalidChoice(s string) bool {
	if s == "" {
		return true
	}
	for _, marker := range placeholderMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
