// internal/models/quiz.go
package models

// QuizBatch is a validated set of questions produced by the model.
type QuizBatch struct {
	Subject    string         `json:"subject"`
	Difficulty string         `json:"difficulty"`
	Language   string         `json:"language"`
	Questions  []QuizQuestion `json:"questions"`
}

type QuizQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation *string  `json:"explanation,omitempty"`
	Topic       *string  `json:"topic,omitempty"`
}
