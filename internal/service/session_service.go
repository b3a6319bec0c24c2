package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"online_quiz_backend/internal/model"
	"online_quiz_backend/internal/repository"
	"online_quiz_backend/internal/util"
	"online_quiz_backend/pkg/monitoring"

	"gorm.io/gorm"
)

// SessionService drives the attempt state machine: start, answer recording,
// submit and the one-shot finalize that freezes the score. All mutations of
// a single attempt serialize on a per-attempt mutex; unrelated attempts
// proceed concurrently. Expiry is detected lazily, the first time any
// operation observes the deadline passed.
type SessionService struct {
	Attempts  *repository.AttemptRepository
	Quizzes   *repository.QuizRepository
	Questions *repository.QuestionRepository

	locks sync.Map // attempt id -> *sync.Mutex
	now   func() time.Time
}

func NewSessionService(attempts *repository.AttemptRepository, quizzes *repository.QuizRepository, questions *repository.QuestionRepository) *SessionService {
	return &SessionService{
		Attempts:  attempts,
		Quizzes:   quizzes,
		Questions: questions,
		now:       time.Now,
	}
}

// NewSessionServiceWithClock is test-only for deterministic deadlines.
func NewSessionServiceWithClock(attempts *repository.AttemptRepository, quizzes *repository.QuizRepository, questions *repository.QuestionRepository, now func() time.Time) *SessionService {
	s := NewSessionService(attempts, quizzes, questions)
	s.now = now
	return s
}

func (s *SessionService) lockAttempt(attemptID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(attemptID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// StartedAttempt is the response of Start. It never carries the answer key.
type StartedAttempt struct {
	AttemptID string    `json:"attemptId"`
	QuizID    uint      `json:"quizId"`
	StartedAt time.Time `json:"startedAt"`
	Deadline  time.Time `json:"deadline"`
}

// Start creates an in_progress attempt with a fixed deadline. At most one
// non-terminal attempt may exist per (user, quiz); concurrent starts race on
// an atomic check-then-insert and exactly one wins.
func (s *SessionService) Start(ctx context.Context, userID, quizID uint) (*StartedAttempt, error) {
	quiz, err := s.Quizzes.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	if quiz.Status != model.QuizActive {
		return nil, util.ErrQuizNotActive
	}

	start := s.now()
	attempt := &model.QuizAttempt{
		QuizID:    quizID,
		UserID:    userID,
		Status:    model.AttemptInProgress,
		StartedAt: start,
		Deadline:  start.Add(time.Duration(quiz.DurationMinutes) * time.Minute),
	}

	if err := s.Attempts.CreateInProgress(ctx, attempt); err != nil {
		return nil, err
	}

	return &StartedAttempt{
		AttemptID: attempt.ID,
		QuizID:    quizID,
		StartedAt: attempt.StartedAt,
		Deadline:  attempt.Deadline,
	}, nil
}

// RecordAnswer upserts the answer for one question. A call past the deadline
// finalizes the attempt first and then fails, so a late answer can neither
// extend the window nor touch the answers map.
func (s *SessionService) RecordAnswer(ctx context.Context, userID uint, attemptID string, questionID uint, answer json.RawMessage) error {
	mu := s.lockAttempt(attemptID)
	mu.Lock()
	defer mu.Unlock()

	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return err
	}
	if attempt.Status != model.AttemptInProgress {
		return util.ErrAttemptNotInProgress
	}
	if s.now().After(attempt.Deadline) {
		if _, err := s.finalizeLocked(ctx, attempt, "expiry"); err != nil {
			return err
		}
		return util.ErrDeadlineExceeded
	}

	if err := s.validateAnswer(ctx, attempt.QuizID, questionID, answer); err != nil {
		return err
	}

	return s.Attempts.UpsertAnswer(ctx, &model.AttemptAnswer{
		AttemptID:  attemptID,
		QuestionID: questionID,
		Answer:     answer,
	})
}

// SubmitResult is the frozen outcome of a finalized attempt.
type SubmitResult struct {
	AttemptID   string    `json:"attemptId"`
	QuizID      uint      `json:"quizId"`
	Score       int       `json:"score"`
	TotalScore  int       `json:"totalScore"`
	Expired     bool      `json:"expired"`
	CompletedAt time.Time `json:"completedAt"`
}

// Submit finalizes the attempt. Submitting an already-terminal attempt is
// not an error: the previously computed result comes back unchanged, which
// makes duplicate retries and the submit-versus-expiry race safe.
func (s *SessionService) Submit(ctx context.Context, userID uint, attemptID string) (*SubmitResult, error) {
	mu := s.lockAttempt(attemptID)
	mu.Lock()
	defer mu.Unlock()

	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Status != model.AttemptInProgress {
		return s.storedResult(ctx, attempt)
	}

	trigger := "submit"
	if s.now().After(attempt.Deadline) {
		trigger = "expiry"
	}
	return s.finalizeLocked(ctx, attempt, trigger)
}

// observeDeadline finalizes an in-progress attempt whose deadline has
// passed. Any read path calls this so storage converges without a
// background timer.
func (s *SessionService) observeDeadline(ctx context.Context, attempt *model.QuizAttempt) error {
	if attempt.Status != model.AttemptInProgress || !s.now().After(attempt.Deadline) {
		return nil
	}

	mu := s.lockAttempt(attempt.ID)
	mu.Lock()
	defer mu.Unlock()

	// Re-read: another caller may have won the race.
	fresh, err := s.Attempts.FindByID(ctx, attempt.ID)
	if err != nil {
		return err
	}
	if fresh.Status == model.AttemptInProgress {
		if _, err := s.finalizeLocked(ctx, fresh, "expiry"); err != nil {
			return err
		}
	}
	*attempt = *fresh
	return nil
}

// AttemptDetail is the read view of an attempt.
type AttemptDetail struct {
	Attempt *model.QuizAttempt    `json:"attempt"`
	Answers []model.AttemptAnswer `json:"answers"`
}

// GetAttempt returns an attempt with its answers. Regular users read only
// their own attempts; ownership mismatches surface as not-found so callers
// cannot discover foreign attempt ids. Admin callers read any attempt.
func (s *SessionService) GetAttempt(ctx context.Context, claims *util.Claims, attemptID string) (*AttemptDetail, error) {
	attempt, err := s.Attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if claims.Role != model.RoleAdmin && attempt.UserID != claims.UserID {
		return nil, util.ErrAttemptNotFound
	}

	if err := s.observeDeadline(ctx, attempt); err != nil {
		return nil, err
	}

	answers, err := s.Attempts.ListAnswers(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return &AttemptDetail{Attempt: attempt, Answers: answers}, nil
}

// finalizeLocked scores the attempt exactly once and writes the terminal
// state. Caller must hold the per-attempt mutex and have verified the
// attempt is still in progress.
func (s *SessionService) finalizeLocked(ctx context.Context, attempt *model.QuizAttempt, trigger string) (*SubmitResult, error) {
	quiz, err := s.Quizzes.FindByID(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}

	mappings, err := s.Quizzes.ListQuestionMappings(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	questionIDs := make([]uint, len(mappings))
	for i, m := range mappings {
		questionIDs[i] = m.QuestionID
	}
	questions, err := s.Questions.FindByIDs(ctx, questionIDs)
	if err != nil {
		return nil, err
	}

	answers, err := s.Attempts.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	total, graded := ScoreAttempt(answers, BuildAnswerKey(questions, mappings))

	now := s.now()
	attempt.Status = model.AttemptCompleted
	attempt.Score = &total
	attempt.Expired = trigger == "expiry"
	attempt.CompletedAt = &now
	attempt.Active = nil

	if err := s.Attempts.Finalize(ctx, attempt, graded); err != nil {
		return nil, err
	}

	monitoring.AttemptFinalizations.WithLabelValues(trigger).Inc()
	s.locks.Delete(attempt.ID)

	return &SubmitResult{
		AttemptID:   attempt.ID,
		QuizID:      attempt.QuizID,
		Score:       total,
		TotalScore:  quiz.TotalScore,
		Expired:     attempt.Expired,
		CompletedAt: now,
	}, nil
}

// storedResult rebuilds the SubmitResult of an already-finalized attempt so
// retried submits return the identical outcome.
func (s *SessionService) storedResult(ctx context.Context, attempt *model.QuizAttempt) (*SubmitResult, error) {
	quiz, err := s.Quizzes.FindByID(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	score := 0
	if attempt.Score != nil {
		score = *attempt.Score
	}
	completedAt := time.Time{}
	if attempt.CompletedAt != nil {
		completedAt = *attempt.CompletedAt
	}
	return &SubmitResult{
		AttemptID:   attempt.ID,
		QuizID:      attempt.QuizID,
		Score:       score,
		TotalScore:  quiz.TotalScore,
		Expired:     attempt.Expired,
		CompletedAt: completedAt,
	}, nil
}

func (s *SessionService) ownedAttempt(ctx context.Context, userID uint, attemptID string) (*model.QuizAttempt, error) {
	attempt, err := s.Attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		// Reported identically to a missing attempt.
		return nil, util.ErrAttemptNotFound
	}
	return attempt, nil
}

// validateAnswer checks the payload shape against the question type and that
// the question (and every referenced option) belongs to the quiz.
func (s *SessionService) validateAnswer(ctx context.Context, quizID, questionID uint, answer json.RawMessage) error {
	mappings, err := s.Quizzes.ListQuestionMappings(ctx, quizID)
	if err != nil {
		return err
	}
	inQuiz := false
	for _, m := range mappings {
		if m.QuestionID == questionID {
			inQuiz = true
			break
		}
	}
	if !inQuiz {
		return util.ErrQuestionNotFound
	}

	question, err := s.Questions.FindByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuestionNotFound
		}
		return err
	}

	valid := make(map[uint]struct{}, len(question.Options))
	for _, opt := range question.Options {
		valid[opt.ID] = struct{}{}
	}

	switch question.Type {
	case model.SingleChoice:
		var id uint
		if err := json.Unmarshal(answer, &id); err != nil {
			return util.ErrValidation
		}
		if _, ok := valid[id]; !ok {
			return util.ErrValidation
		}
	case model.MultipleChoice:
		var ids []uint
		if err := json.Unmarshal(answer, &ids); err != nil {
			return util.ErrValidation
		}
		for _, id := range ids {
			if _, ok := valid[id]; !ok {
				return util.ErrValidation
			}
		}
	case model.TextQuestion:
		var text string
		if err := json.Unmarshal(answer, &text); err != nil {
			return util.ErrValidation
		}
	default:
		return util.ErrValidation
	}
	return nil
}

// LogicalStatus maps stored state to the reader-facing one: an in-progress
// attempt past its deadline reads as expired even before finalize has
// physically run.
func (s *SessionService) LogicalStatus(attempt *model.QuizAttempt) string {
	switch {
	case attempt.Status == model.AttemptInProgress && s.now().After(attempt.Deadline):
		return "expired"
	case attempt.Status == model.AttemptCompleted && attempt.Expired:
		return "expired"
	default:
		return string(attempt.Status)
	}
}
