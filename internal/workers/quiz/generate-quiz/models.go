package generatequiz

import "travel-planner-workers/internal/models"

type Input struct {
	Email             string   `json:"email"`
	Subject           string   `json:"subject"`
	NumberOfQuestions int      `json:"numberOfQuestions"`
	Difficulty        string   `json:"difficulty,omitempty"`
	PreferredLanguage string   `json:"preferredLanguage,omitempty"`
	Topics            []string `json:"topics,omitempty"`
}

type Output struct {
	Quiz      *models.QuizBatch `json:"quiz"`
	RecordKey string            `json:"recordKey"`
	Repaired  bool              `json:"repaired"`
}
