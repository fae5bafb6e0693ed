package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// QuizQuestion holds options and the index of the correct one.
type QuizQuestion struct {
	Question      string   `json:"question" validate:"required"`
	Options       []string `json:"options" validate:"min=2"`
	CorrectAnswer int      `json:"correctAnswer" validate:"gte=0"`
}

// QuizQuestions is stored as one JSONB column.
type QuizQuestions []QuizQuestion

// Value implements driver.Valuer.
func (q QuizQuestions) Value() (driver.Value, error) { return json.Marshal(q) }

// Scan implements sql.Scanner.
func (q *QuizQuestions) Scan(src any) error { return scanJSON(src, q) }

// Quiz is a catalog quiz.
type Quiz struct {
	ID          int64         `db:"id" json:"id"`
	Title       string        `db:"title" json:"title"`
	Description string        `db:"description" json:"description"`
	Difficulty  string        `db:"difficulty" json:"difficulty"`
	Questions   QuizQuestions `db:"questions" json:"questions"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updatedAt"`
}

// PublicQuestion hides the answer key.
type PublicQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// PublicQuiz is what players see.
type PublicQuiz struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Difficulty  string           `json:"difficulty"`
	Questions   []PublicQuestion `json:"questions"`
}

// Public strips the correct answers.
func (q *Quiz) Public() PublicQuiz {
	out := PublicQuiz{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		Difficulty:  q.Difficulty,
		Questions:   make([]PublicQuestion, len(q.Questions)),
	}
	for i, qq := range q.Questions {
		out.Questions[i] = PublicQuestion{Question: qq.Question, Options: qq.Options}
	}
	return out
}

// Grade counts correct answers. Missing or extra answers score nothing.
func (q *Quiz) Grade(answers []int) int {
	score := 0
	for i, qq := range q.Questions {
		if i < len(answers) && answers[i] == qq.CorrectAnswer {
			score++
		}
	}
	return score
}

// QuizRequest is used for both create and full update.
type QuizRequest struct {
	Title       string         `json:"title" validate:"required,max=200"`
	Description string         `json:"description" validate:"max=1000"`
	Difficulty  string         `json:"difficulty" validate:"required,oneof=easy medium hard"`
	Questions   []QuizQuestion `json:"questions" validate:"required,min=1,dive"`
}

// QuizAttempt is a scored submission.
type QuizAttempt struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"userId"`
	QuizID      int64     `db:"quiz_id" json:"quizId"`
	Score       int       `db:"score" json:"score"`
	Total       int       `db:"total" json:"total"`
	AttemptedAt time.Time `db:"attempted_at" json:"attemptedAt"`
}

// SubmitAttemptRequest carries the chosen option index per question.
type SubmitAttemptRequest struct {
	Answers []int `json:"answers" validate:"required,dive,gte=0"`
}

// Quiz errors
var (
	ErrQuizNotFound        = NewError(KindNotFound, "quiz not found")
	ErrQuizAttemptNotFound = NewError(KindNotFound, "quiz attempt not found")
	ErrAnswerOutOfRange    = NewError(KindValidation, "correct answer index is out of range")
)
