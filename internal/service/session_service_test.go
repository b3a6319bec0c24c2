package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"online_quiz_backend/internal/model"
	"online_quiz_backend/internal/repository"
	"online_quiz_backend/internal/util"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:session_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// A single connection keeps the shared in-memory database alive and
	// serializes writes, so concurrent starts exercise the transaction
	// logic instead of sqlite's busy handler.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.Quiz{},
		&model.QuizQuestion{},
		&model.Question{},
		&model.QuestionOption{},
		&model.QuizAttempt{},
		&model.AttemptAnswer{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sessionFixture struct {
	db        *gorm.DB
	svc       *SessionService
	clock     *fakeClock
	attempts  *repository.AttemptRepository
	quizzes   *repository.QuizRepository
	questions *repository.QuestionRepository
	quiz      *model.Quiz
	single    *model.Question // 3 marks, option[0] correct
	multi     *model.Question // 5 marks, options[0] and [2] correct
	text      *model.Question // 2 marks
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	db := newTestDB(t)
	ctx := context.Background()

	quizzes := repository.NewQuizRepository(db)
	questions := repository.NewQuestionRepository(db)
	attempts := repository.NewAttemptRepository(db)

	single := &model.Question{
		Text: "What does CPU stand for?",
		Type: model.SingleChoice,
		Options: []model.QuestionOption{
			{Text: "Central Processing Unit", IsCorrect: true},
			{Text: "Computer Personal Unit"},
		},
	}
	multi := &model.Question{
		Text: "Which of these are databases?",
		Type: model.MultipleChoice,
		Options: []model.QuestionOption{
			{Text: "MySQL", IsCorrect: true},
			{Text: "Nginx"},
			{Text: "PostgreSQL", IsCorrect: true},
		},
	}
	text := &model.Question{
		Text: "Explain normalization.",
		Type: model.TextQuestion,
	}
	for _, q := range []*model.Question{single, multi, text} {
		if err := questions.Create(ctx, q); err != nil {
			t.Fatalf("create question: %v", err)
		}
	}

	quiz := &model.Quiz{
		Title:           "Fundamentals",
		NumQuestions:    3,
		TotalScore:      10,
		DurationMinutes: 30,
		Status:          model.QuizActive,
		CreatedBy:       1,
	}
	if err := quizzes.Create(ctx, quiz); err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	mappings := []model.QuizQuestion{
		{QuizID: quiz.ID, QuestionID: single.ID, QuestionNumber: 1, Marks: 3},
		{QuizID: quiz.ID, QuestionID: multi.ID, QuestionNumber: 2, Marks: 5},
		{QuizID: quiz.ID, QuestionID: text.ID, QuestionNumber: 3, Marks: 2},
	}
	if err := quizzes.ReplaceQuestions(ctx, quiz.ID, mappings); err != nil {
		t.Fatalf("map questions: %v", err)
	}

	clock := newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := NewSessionServiceWithClock(attempts, quizzes, questions, clock.Now)

	return &sessionFixture{
		db:        db,
		svc:       svc,
		clock:     clock,
		attempts:  attempts,
		quizzes:   quizzes,
		questions: questions,
		quiz:      quiz,
		single:    single,
		multi:     multi,
		text:      text,
	}
}

func TestStartFixesDeadline(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, 7, f.quiz.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	wantDeadline := f.clock.Now().Add(30 * time.Minute)
	if !started.Deadline.Equal(wantDeadline) {
		t.Fatalf("expected deadline %v, got %v", wantDeadline, started.Deadline)
	}

	stored, err := f.attempts.FindByID(ctx, started.AttemptID)
	if err != nil {
		t.Fatalf("find attempt: %v", err)
	}
	if stored.Status != model.AttemptInProgress {
		t.Fatalf("expected in_progress, got %s", stored.Status)
	}
}

func TestStartRejectsInactiveQuiz(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.quiz.Status = model.QuizDraft
	if err := f.quizzes.Update(ctx, f.quiz); err != nil {
		t.Fatalf("update quiz: %v", err)
	}

	if _, err := f.svc.Start(ctx, 7, f.quiz.ID); !errors.Is(err, util.ErrQuizNotActive) {
		t.Fatalf("expected ErrQuizNotActive, got %v", err)
	}
}

func TestStartSecondAttemptRejected(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, 7, f.quiz.ID); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if _, err := f.svc.Start(ctx, 7, f.quiz.ID); !errors.Is(err, util.ErrAlreadyInProgress) {
		t.Fatalf("expected ErrAlreadyInProgress, got %v", err)
	}

	// A different user is unaffected.
	if _, err := f.svc.Start(ctx, 8, f.quiz.ID); err != nil {
		t.Fatalf("other user's start failed: %v", err)
	}
}

func TestConcurrentStartsSingleWinner(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	const racers = 8
	var wg sync.WaitGroup
	var won int64
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Start(ctx, 7, f.quiz.ID)
			if err == nil {
				atomic.AddInt64(&won, 1)
			} else if !errors.Is(err, util.ErrAlreadyInProgress) {
				t.Errorf("unexpected start error: %v", err)
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}
}

func TestRecordAnswerOverwrites(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, 7, f.quiz.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	wrong := f.single.Options[1].ID
	right := f.single.Options[0].ID

	if err := f.svc.RecordAnswer(ctx, 7, started.AttemptID, f.single.ID, rawAnswer(t, wrong)); err != nil {
		t.Fatalf("record first answer: %v", err)
	}
	if err := f.svc.RecordAnswer(ctx, 7, started.AttemptID, f.single.ID, rawAnswer(t, right)); err != nil {
		t.Fatalf("record second answer: %v", err)
	}

	answers, err := f.attempts.ListAnswers(ctx, started.AttemptID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("expected one stored answer after overwrite, got %d", len(answers))
	}
	if string(answers[0].Answer) != string(rawAnswer(t, right)) {
		t.Fatalf("expected latest answer to win, got %s", answers[0].Answer)
	}
}

func TestRecordAnswerValidation(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, 7, f.quiz.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Option belonging to a different question.
	foreign := f.multi.Options[0].ID
	if err := f.svc.RecordAnswer(ctx, 7, started.AttemptID, f.single.ID, rawAnswer(t, foreign)); !errors.Is(err, util.ErrValidation) {
		t.Fatalf("expected ErrValidation for foreign option, got %v", err)
	}

	// Question outside the quiz.
	if err := f.svc.RecordAnswer(ctx, 7, started.AttemptID, 9999, rawAnswer(t, 1)); !errors.Is(err, util.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}

	// Payload shape that does not match the question type.
	if err := f.svc.RecordAnswer(ctx, 7, started.AttemptID, f.single.ID, rawAnswer(t, "not an id")); !errors.Is(err, util.ErrValidation) {
		t.Fatalf("expected ErrValidation for malformed payload, got %v", err)
	}
}

func TestRecordAnswerAfterDeadlineFinalizes(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, 7, f.quiz.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	right := f.single.Options[0].ID
	if err := f.svc.RecordAnswer(ctx, 7, started.AttemptID, f.single.ID, rawAnswer(t, right)); err != nil {
		t.Fatalf("record answer: %v", err)
	}

	f.clock.Advance(31 * time.Minute)

	err = f.svc.RecordAnswer(ctx, 7, started.AttemptID, f.multi.ID, rawAnswer(t, []uint{f.multi.Options[0].ID}))
	if !errors.Is(err, util.ErrDeadlineExceeded) {
		t.Fatalf("expected ErrDeadlineExceeded, got %v", err)
	}

	stored, err := f.attempts.FindByID(ctx, started.AttemptID)
	if err != nil {
		t.Fatalf("find attempt: %v", err)
	}
	if stored.Status != model.AttemptCompleted || !stored.Expired {
		t.Fatalf("late answer should have finalized as expired, got status=%s expired=%v", stored.Status, stored.Expired)
	}
	if stored.Score == nil || *stored.Score != 3 {
		t.Fatalf("expected only pre-deadline answers to score (3), got %v", stored.Score)
	}

	answers, err := f.attempts.ListAnswers(ctx, started.AttemptID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("late answer must not be stored, got %d answers", len(answers))
	}
}

func TestSubmitScoresAttempt(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, 7, f.quiz.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := f.svc.RecordAnswer(ctx, 7, started.AttemptID, f.single.ID, rawAnswer(t, f.single.Options[0].ID)); err != nil {
		t.Fatalf("record single: %v", err)
	}
	multiPick := []uint{f.multi.Options[0].ID, f.multi.Options[2].ID}
	if err := f.svc.RecordAnswer(ctx, 7, started.AttemptID, f.multi.ID, rawAnswer(t, multiPick)); err != nil {
		t.Fatalf("record multi: %v", err)
	}
	if err := f.svc.RecordAnswer(ctx, 7, started.AttemptID, f.text.ID, rawAnswer(t, "answer text")); err != nil {
		t.Fatalf("record text: %v", err)
	}

	result, err := f.svc.Submit(ctx, 7, started.AttemptID)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Score != 8 {
		t.Fatalf("expected score 8 (3 + 5, text unscored), got %d", result.Score)
	}
	if result.TotalScore != 10 || result.Expired {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, 7, f.quiz.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := f.svc.RecordAnswer(ctx, 7, started.AttemptID, f.single.ID, rawAnswer(t, f.single.Options[0].ID)); err != nil {
		t.Fatalf("record answer: %v", err)
	}

	first, err := f.svc.Submit(ctx, 7, started.AttemptID)
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	f.clock.Advance(time.Hour)

	second, err := f.svc.Submit(ctx, 7, started.AttemptID)
	if err != nil {
		t.Fatalf("retried submit failed: %v", err)
	}
	if second.Score != first.Score || !second.CompletedAt.Equal(first.CompletedAt) || second.Expired != first.Expired {
		t.Fatalf("retried submit changed the result: first=%+v second=%+v", first, second)
	}

	// Answers are frozen after finalization.
	err = f.svc.RecordAnswer(ctx, 7, started.AttemptID, f.single.ID, rawAnswer(t, f.single.Options[1].ID))
	if !errors.Is(err, util.ErrAttemptNotInProgress) {
		t.Fatalf("expected ErrAttemptNotInProgress, got %v", err)
	}
}

func TestSubmitPastDeadlineMarksExpired(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, 7, f.quiz.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	f.clock.Advance(45 * time.Minute)

	result, err := f.svc.Submit(ctx, 7, started.AttemptID)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !result.Expired {
		t.Fatal("submit after the deadline should report the attempt expired")
	}
}

func TestRetakeAfterSubmit(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	first, err := f.svc.Start(ctx, 7, f.quiz.ID)
	if err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if err := f.svc.RecordAnswer(ctx, 7, first.AttemptID, f.single.ID, rawAnswer(t, f.single.Options[0].ID)); err != nil {
		t.Fatalf("record first answer: %v", err)
	}
	firstResult, err := f.svc.Submit(ctx, 7, first.AttemptID)
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if firstResult.Score != 3 {
		t.Fatalf("expected first score 3, got %d", firstResult.Score)
	}

	// A finished attempt no longer blocks a fresh start.
	second, err := f.svc.Start(ctx, 7, f.quiz.ID)
	if err != nil {
		t.Fatalf("retake start failed: %v", err)
	}
	if second.AttemptID == first.AttemptID {
		t.Fatal("retake must get its own attempt")
	}

	multiPick := []uint{f.multi.Options[0].ID, f.multi.Options[2].ID}
	if err := f.svc.RecordAnswer(ctx, 7, second.AttemptID, f.multi.ID, rawAnswer(t, multiPick)); err != nil {
		t.Fatalf("record retake answer: %v", err)
	}
	secondResult, err := f.svc.Submit(ctx, 7, second.AttemptID)
	if err != nil {
		t.Fatalf("retake submit failed: %v", err)
	}
	if secondResult.Score != 5 {
		t.Fatalf("expected retake score 5, got %d", secondResult.Score)
	}

	// Both rows stay terminal with their own scores.
	for id, want := range map[string]int{first.AttemptID: 3, second.AttemptID: 5} {
		stored, err := f.attempts.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("find attempt %s: %v", id, err)
		}
		if stored.Status != model.AttemptCompleted || stored.Score == nil || *stored.Score != want {
			t.Fatalf("attempt %s: status=%s score=%v, want completed/%d", id, stored.Status, stored.Score, want)
		}
	}
}

func TestGetAttemptOwnership(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, 7, f.quiz.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	owner := &util.Claims{UserID: 7, Role: model.RoleUser}
	if _, err := f.svc.GetAttempt(ctx, owner, started.AttemptID); err != nil {
		t.Fatalf("owner read failed: %v", err)
	}

	stranger := &util.Claims{UserID: 8, Role: model.RoleUser}
	if _, err := f.svc.GetAttempt(ctx, stranger, started.AttemptID); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound for foreign attempt, got %v", err)
	}

	admin := &util.Claims{UserID: 1, Role: model.RoleAdmin}
	if _, err := f.svc.GetAttempt(ctx, admin, started.AttemptID); err != nil {
		t.Fatalf("admin read failed: %v", err)
	}
}

func TestGetAttemptFinalizesPastDeadline(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, 7, f.quiz.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	f.clock.Advance(31 * time.Minute)

	owner := &util.Claims{UserID: 7, Role: model.RoleUser}
	detail, err := f.svc.GetAttempt(ctx, owner, started.AttemptID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if detail.Attempt.Status != model.AttemptCompleted || !detail.Attempt.Expired {
		t.Fatalf("read past deadline should finalize as expired, got %+v", detail.Attempt)
	}

	// A second read sees the same terminal state.
	again, err := f.svc.GetAttempt(ctx, owner, started.AttemptID)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if again.Attempt.Score == nil || detail.Attempt.Score == nil || *again.Attempt.Score != *detail.Attempt.Score {
		t.Fatalf("score changed between reads: %v vs %v", detail.Attempt.Score, again.Attempt.Score)
	}
}

func TestLogicalStatus(t *testing.T) {
	f := newSessionFixture(t)

	now := f.clock.Now()
	inProgress := &model.QuizAttempt{Status: model.AttemptInProgress, Deadline: now.Add(time.Minute)}
	if got := f.svc.LogicalStatus(inProgress); got != "in_progress" {
		t.Fatalf("expected in_progress, got %s", got)
	}

	pastDeadline := &model.QuizAttempt{Status: model.AttemptInProgress, Deadline: now.Add(-time.Minute)}
	if got := f.svc.LogicalStatus(pastDeadline); got != "expired" {
		t.Fatalf("expected expired for overdue attempt, got %s", got)
	}

	completedExpired := &model.QuizAttempt{Status: model.AttemptCompleted, Expired: true}
	if got := f.svc.LogicalStatus(completedExpired); got != "expired" {
		t.Fatalf("expected expired, got %s", got)
	}

	completed := &model.QuizAttempt{Status: model.AttemptCompleted}
	if got := f.svc.LogicalStatus(completed); got != "completed" {
		t.Fatalf("expected completed, got %s", got)
	}
}
