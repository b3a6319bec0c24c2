package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"online_quiz_backend/internal/model"
	"online_quiz_backend/internal/repository"
	"online_quiz_backend/internal/util"

	"gorm.io/gorm"
)

// ReportService builds the read views: the user's quiz overview, the
// question-serving payload for a running attempt, result details and the
// admin attempt listings. It never exposes correctness flags to a user
// before their attempt is finalized.
type ReportService struct {
	Quizzes   *repository.QuizRepository
	Questions *repository.QuestionRepository
	Attempts  *repository.AttemptRepository
	Users     *repository.UserRepository
	Sessions  *SessionService
}

func NewReportService(quizzes *repository.QuizRepository, questions *repository.QuestionRepository, attempts *repository.AttemptRepository, users *repository.UserRepository, sessions *SessionService) *ReportService {
	return &ReportService{
		Quizzes:   quizzes,
		Questions: questions,
		Attempts:  attempts,
		Users:     users,
		Sessions:  sessions,
	}
}

type UserQuizRow struct {
	ID              uint   `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	TotalScore      int    `json:"totalScore"`
	DurationMinutes int    `json:"durationMinutes"`
	Status          string `json:"status"` // not_started | in_progress | completed | expired
	AttemptID       string `json:"attemptId,omitempty"`
	Score           *int   `json:"score,omitempty"`
}

// MyQuizzes lists every active quiz with the caller's progress on it. An
// untouched attempt past its deadline reads as expired here even though
// finalize has not physically run yet.
func (s *ReportService) MyQuizzes(ctx context.Context, userID uint) ([]UserQuizRow, error) {
	quizzes, err := s.Quizzes.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	attempts, err := s.Attempts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	latest := make(map[uint]*model.QuizAttempt, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		if prev, ok := latest[a.QuizID]; !ok || a.CreatedAt.After(prev.CreatedAt) {
			latest[a.QuizID] = a
		}
	}

	rows := make([]UserQuizRow, 0, len(quizzes))
	for _, quiz := range quizzes {
		row := UserQuizRow{
			ID:              quiz.ID,
			Title:           quiz.Title,
			Description:     quiz.Description,
			TotalScore:      quiz.TotalScore,
			DurationMinutes: quiz.DurationMinutes,
			Status:          "not_started",
		}
		if attempt, ok := latest[quiz.ID]; ok {
			row.Status = s.Sessions.LogicalStatus(attempt)
			row.AttemptID = attempt.ID
			if attempt.Status == model.AttemptCompleted {
				row.Score = attempt.Score
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ServedOption is an option as shown to a test taker: no correctness flag.
type ServedOption struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

type ServedQuestion struct {
	QuestionNumber int             `json:"questionNumber"`
	ID             uint            `json:"id"`
	Text           string          `json:"text"`
	Type           string          `json:"type"`
	Marks          int             `json:"marks"`
	Options        []ServedOption  `json:"options,omitempty"`
	Answer         json.RawMessage `json:"answer,omitempty"` // caller's saved answer
}

type AttemptPaper struct {
	QuizID           uint             `json:"quizId"`
	Title            string           `json:"title"`
	DurationMinutes  int              `json:"durationMinutes"`
	TotalScore       int              `json:"totalScore"`
	AttemptID        string           `json:"attemptId"`
	StartedAt        time.Time        `json:"startedAt"`
	Deadline         time.Time        `json:"deadline"`
	RemainingSeconds int              `json:"remainingSeconds"`
	Questions        []ServedQuestion `json:"questions"`
}

// AttemptPaper serves the quiz questions for the caller's running attempt.
// The answer key stays server-side; the remaining-seconds field is cosmetic
// for client countdowns and never trusted for cutoff decisions.
func (s *ReportService) AttemptPaper(ctx context.Context, userID, quizID uint) (*AttemptPaper, error) {
	quiz, err := s.Quizzes.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	attempt, err := s.Attempts.FindByUserAndQuiz(ctx, userID, quizID, model.AttemptInProgress)
	if err != nil {
		return nil, err
	}
	if err := s.Sessions.observeDeadline(ctx, attempt); err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, util.ErrAttemptNotInProgress
	}

	questions, mappings, err := s.quizQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}

	answers, err := s.Attempts.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	saved := make(map[uint]json.RawMessage, len(answers))
	for _, a := range answers {
		saved[a.QuestionID] = a.Answer
	}

	served := make([]ServedQuestion, 0, len(mappings))
	for _, m := range mappings {
		q, ok := questions[m.QuestionID]
		if !ok {
			continue
		}
		sq := ServedQuestion{
			QuestionNumber: m.QuestionNumber,
			ID:             q.ID,
			Text:           q.Text,
			Type:           string(q.Type),
			Marks:          m.Marks,
			Answer:         saved[q.ID],
		}
		for _, opt := range q.Options {
			sq.Options = append(sq.Options, ServedOption{ID: opt.ID, Text: opt.Text})
		}
		served = append(served, sq)
	}

	remaining := int(attempt.Deadline.Sub(s.Sessions.now()).Seconds())
	if remaining < 0 {
		remaining = 0
	}

	return &AttemptPaper{
		QuizID:           quiz.ID,
		Title:            quiz.Title,
		DurationMinutes:  quiz.DurationMinutes,
		TotalScore:       quiz.TotalScore,
		AttemptID:        attempt.ID,
		StartedAt:        attempt.StartedAt,
		Deadline:         attempt.Deadline,
		RemainingSeconds: remaining,
		Questions:        served,
	}, nil
}

type ResultQuestion struct {
	QuestionNumber int             `json:"questionNumber"`
	QuestionID     uint            `json:"questionId"`
	Text           string          `json:"text"`
	Type           string          `json:"type"`
	MarksPossible  int             `json:"marksPossible"`
	MarksObtained  int             `json:"marksObtained"`
	IsCorrect      bool            `json:"isCorrect"`
	Answer         json.RawMessage `json:"answer,omitempty"`
	CorrectOptions []ServedOption  `json:"correctOptions,omitempty"`
	AllOptions     []ServedOption  `json:"allOptions,omitempty"`
}

type AttemptResult struct {
	QuizID      uint             `json:"quizId"`
	QuizTitle   string           `json:"quizTitle"`
	AttemptID   string           `json:"attemptId"`
	UserID      uint             `json:"userId"`
	Status      string           `json:"status"`
	TotalScore  int              `json:"totalScore"`
	Score       int              `json:"score"`
	Expired     bool             `json:"expired"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	Questions   []ResultQuestion `json:"questions"`
}

// Result builds the per-question breakdown of an attempt, including correct
// options. Owners may see it only after finalization; administrators may
// read a still-running attempt too (GetAttempt has already finalized it if
// its deadline passed, so in_progress here means genuinely running).
func (s *ReportService) Result(ctx context.Context, claims *util.Claims, attemptID string) (*AttemptResult, error) {
	detail, err := s.Sessions.GetAttempt(ctx, claims, attemptID)
	if err != nil {
		return nil, err
	}
	attempt := detail.Attempt
	if attempt.Status != model.AttemptCompleted && claims.Role != model.RoleAdmin {
		return nil, util.ErrAttemptNotInProgress
	}
	return s.buildResult(ctx, attempt, detail.Answers)
}

// ResultByQuiz resolves the caller's completed attempt for a quiz. An
// in-progress attempt whose deadline has passed finalizes right here, so a
// never-submitted attempt still serves its expired result on the first read.
func (s *ReportService) ResultByQuiz(ctx context.Context, claims *util.Claims, quizID uint) (*AttemptResult, error) {
	attempt, err := s.Attempts.FindByUserAndQuiz(ctx, claims.UserID, quizID, model.AttemptCompleted)
	if errors.Is(err, util.ErrAttemptNotFound) {
		attempt, err = s.Attempts.FindByUserAndQuiz(ctx, claims.UserID, quizID, model.AttemptInProgress)
		if err != nil {
			return nil, err
		}
		if err := s.Sessions.observeDeadline(ctx, attempt); err != nil {
			return nil, err
		}
		if attempt.Status != model.AttemptCompleted {
			// Still running, no result to serve yet.
			return nil, util.ErrAttemptNotFound
		}
	} else if err != nil {
		return nil, err
	}

	answers, err := s.Attempts.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	return s.buildResult(ctx, attempt, answers)
}

func (s *ReportService) buildResult(ctx context.Context, attempt *model.QuizAttempt, answers []model.AttemptAnswer) (*AttemptResult, error) {
	quiz, err := s.Quizzes.FindByID(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	questions, mappings, err := s.quizQuestions(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}

	byQuestion := make(map[uint]*model.AttemptAnswer, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	score := 0
	if attempt.Score != nil {
		score = *attempt.Score
	}

	result := &AttemptResult{
		QuizID:      quiz.ID,
		QuizTitle:   quiz.Title,
		AttemptID:   attempt.ID,
		UserID:      attempt.UserID,
		Status:      s.Sessions.LogicalStatus(attempt),
		TotalScore:  quiz.TotalScore,
		Score:       score,
		Expired:     attempt.Expired,
		CompletedAt: attempt.CompletedAt,
	}

	for _, m := range mappings {
		q, ok := questions[m.QuestionID]
		if !ok {
			continue
		}
		rq := ResultQuestion{
			QuestionNumber: m.QuestionNumber,
			QuestionID:     q.ID,
			Text:           q.Text,
			Type:           string(q.Type),
			MarksPossible:  m.Marks,
		}
		if ans, ok := byQuestion[q.ID]; ok {
			rq.MarksObtained = ans.Marks
			rq.IsCorrect = ans.IsCorrect
			rq.Answer = ans.Answer
		}
		for _, opt := range q.Options {
			so := ServedOption{ID: opt.ID, Text: opt.Text}
			rq.AllOptions = append(rq.AllOptions, so)
			if opt.IsCorrect {
				rq.CorrectOptions = append(rq.CorrectOptions, so)
			}
		}
		result.Questions = append(result.Questions, rq)
	}
	return result, nil
}

type AdminAttemptRow struct {
	AttemptID   string     `json:"attemptId"`
	UserID      uint       `json:"userId"`
	UserName    string     `json:"userName"`
	UserEmail   string     `json:"userEmail"`
	Status      string     `json:"status"`
	Score       *int       `json:"score,omitempty"`
	Expired     bool       `json:"expired"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// QuizAttempts lists a quiz's attempts for administrators, newest first.
func (s *ReportService) QuizAttempts(ctx context.Context, quizID uint, page, limit int) ([]AdminAttemptRow, int64, error) {
	if _, err := s.Quizzes.FindByID(ctx, quizID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, util.ErrQuizNotFound
		}
		return nil, 0, err
	}

	attempts, total, err := s.Attempts.ListByQuiz(ctx, quizID, page, limit)
	if err != nil {
		return nil, 0, err
	}

	rows := make([]AdminAttemptRow, 0, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		row := AdminAttemptRow{
			AttemptID:   a.ID,
			UserID:      a.UserID,
			Status:      s.Sessions.LogicalStatus(a),
			Score:       a.Score,
			Expired:     a.Expired,
			StartedAt:   a.StartedAt,
			CompletedAt: a.CompletedAt,
		}
		if user, err := s.Users.FindByID(ctx, a.UserID); err == nil {
			row.UserName = user.Name
			row.UserEmail = user.Email
		}
		rows = append(rows, row)
	}
	return rows, total, nil
}

func (s *ReportService) quizQuestions(ctx context.Context, quizID uint) (map[uint]model.Question, []model.QuizQuestion, error) {
	mappings, err := s.Quizzes.ListQuestionMappings(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]uint, len(mappings))
	for i, m := range mappings {
		ids[i] = m.QuestionID
	}
	questions, err := s.Questions.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[uint]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return byID, mappings, nil
}
