package service

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"geojungle/internal/model"
	"geojungle/internal/repository"
)

type QuizService struct {
	tx       repository.Transactor
	quizRepo repository.QuizRepository
	userRepo repository.UserRepository
}

func NewQuizService(tx repository.Transactor, quizRepo repository.QuizRepository, userRepo repository.UserRepository) *QuizService {
	return &QuizService{tx: tx, quizRepo: quizRepo, userRepo: userRepo}
}

func (s *QuizService) Create(ctx context.Context, req model.QuizRequest) (*model.Quiz, error) {
	quiz := &model.Quiz{}
	if err := applyQuizRequest(quiz, req); err != nil {
		return nil, err
	}
	if err := s.quizRepo.Create(ctx, quiz); err != nil {
		return nil, err
	}
	log.Printf("[QuizService] Quiz %d %q created", quiz.ID, quiz.Title)
	return quiz, nil
}

func applyQuizRequest(q *model.Quiz, req model.QuizRequest) error {
	if len(req.Questions) == 0 {
		return model.Validationf("a quiz needs at least one question")
	}
	for _, qq := range req.Questions {
		if qq.CorrectAnswer < 0 || qq.CorrectAnswer >= len(qq.Options) {
			return model.ErrAnswerOutOfRange
		}
	}
	q.Title = strings.TrimSpace(req.Title)
	q.Description = strings.TrimSpace(req.Description)
	q.Difficulty = req.Difficulty
	q.Questions = model.QuizQuestions(req.Questions)
	return nil
}

// GetByID returns the full quiz including answers. Admin only.
func (s *QuizService) GetByID(ctx context.Context, id int64) (*model.Quiz, error) {
	return s.quizRepo.GetByID(ctx, id)
}

// GetPublic returns the quiz without its answer key.
func (s *QuizService) GetPublic(ctx context.Context, id int64) (*model.PublicQuiz, error) {
	quiz, err := s.quizRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	public := quiz.Public()
	return &public, nil
}

func (s *QuizService) List(ctx context.Context) ([]model.Quiz, error) {
	return s.quizRepo.List(ctx)
}

func (s *QuizService) ListPublic(ctx context.Context) ([]model.PublicQuiz, error) {
	quizzes, err := s.quizRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.PublicQuiz, len(quizzes))
	for i := range quizzes {
		out[i] = quizzes[i].Public()
	}
	return out, nil
}

func (s *QuizService) Update(ctx context.Context, id int64, req model.QuizRequest) (*model.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyQuizRequest(quiz, req); err != nil {
		return nil, err
	}
	if err := s.quizRepo.Update(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// Delete removes the quiz with its attempts and takes each attempt back off
// its user's completion count.
func (s *QuizService) Delete(ctx context.Context, id int64) error {
	var reversed int64
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		reversed, err = s.quizRepo.Delete(ctx, tx, id)
		return err
	})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"quiz_id": id, "users_reversed": reversed}).Info("[QuizService] Quiz deleted")
	return nil
}

// SubmitAttempt grades the answers server-side, stores the attempt and
// counts the quiz as completed for the user.
func (s *QuizService) SubmitAttempt(ctx context.Context, quizID, userID int64, req model.SubmitAttemptRequest) (*model.QuizAttempt, error) {
	if userID <= 0 {
		return nil, model.ErrIdentityRequired
	}
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}

	attempt := &model.QuizAttempt{
		UserID: userID,
		QuizID: quizID,
		Score:  quiz.Grade(req.Answers),
		Total:  len(quiz.Questions),
	}
	err = s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.quizRepo.CreateAttempt(ctx, tx, attempt); err != nil {
			return err
		}
		return s.userRepo.AdjustQuizzesCompleted(ctx, tx, userID, 1)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[QuizService] User %d scored %d/%d on quiz %d", userID, attempt.Score, attempt.Total, quizID)
	return attempt, nil
}

// DeleteAttempt removes an attempt and reverses the completion count.
func (s *QuizService) DeleteAttempt(ctx context.Context, attemptID int64) error {
	return s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		attempt, err := s.quizRepo.DeleteAttempt(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		return s.userRepo.AdjustQuizzesCompleted(ctx, tx, attempt.UserID, -1)
	})
}
