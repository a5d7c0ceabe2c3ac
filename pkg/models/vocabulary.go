package models

// VocabularyItem is a catalog entry a learner is quizzed on
type VocabularyItem struct {
	ID       string `json:"id" validate:"required"`
	Term     string `json:"term" validate:"required"`
	Meaning  string `json:"meaning" validate:"required"`
	Reading  string `json:"reading,omitempty"`
	Hint     string `json:"hint,omitempty"`
	Example  string `json:"example,omitempty"`
	Category string `json:"category,omitempty"`
}
