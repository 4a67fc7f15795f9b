// Package content defines the deliverable items (idioms and quiz questions)
// and loads them from JSON files in the content directory.
package content

import "strings"

// Kind labels a batch as idioms or quiz questions.
type Kind string

const (
	KindIdiom Kind = "idiom"
	KindQuiz  Kind = "quiz"
)

// Idiom is a phrase with its meaning and usage examples.
type Idiom struct {
	Phrase         string   `json:"phrase"`
	Interpretation string   `json:"interpretation"`
	Examples       []string `json:"examples"`
}

// QuizQuestion is a four-option multiple choice question.
// Options A..D map to poll positions 0..3.
type QuizQuestion struct {
	Question    string `json:"question"`
	A           string `json:"a"`
	B           string `json:"b"`
	C           string `json:"c"`
	D           string `json:"d"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation,omitempty"`
}

// Options returns the option texts in poll order.
func (q QuizQuestion) Options() [4]string {
	return [4]string{q.A, q.B, q.C, q.D}
}

// CorrectIndex resolves the answer letter to a poll position.
// Unknown or empty answers resolve to 0 (A).
func (q QuizQuestion) CorrectIndex() int {
	return AnswerIndex(q.Answer)
}

// AnswerIndex maps "A".."D" (any case, surrounding space ignored) to 0..3.
func AnswerIndex(answer string) int {
	switch strings.ToUpper(strings.TrimSpace(answer)) {
	case "B":
		return 1
	case "C":
		return 2
	case "D":
		return 3
	default:
		return 0
	}
}
