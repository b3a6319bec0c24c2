package model

import (
	"encoding/json"
	"time"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

// QuizAttempt is one user's timed run at a quiz. Deadline is fixed at
// creation and never mutated; Score and CompletedAt are written exactly once
// at finalization.
type QuizAttempt struct {
	UUIDBase
	QuizID      uint          `gorm:"index;uniqueIndex:uniq_user_quiz_active" json:"quizId"`
	UserID      uint          `gorm:"index;uniqueIndex:uniq_user_quiz_active" json:"userId"`
	Status      AttemptStatus `gorm:"size:20;default:'in_progress'" json:"status"`
	StartedAt   time.Time     `json:"startedAt"`
	Deadline    time.Time     `json:"deadline"`
	Score       *int          `json:"score,omitempty"`
	Expired     bool          `gorm:"default:false" json:"expired"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`

	// Active is set while the attempt is in progress and cleared to NULL at
	// finalization. NULLs never collide in the composite unique index, so
	// completed attempts accumulate freely while at most one row per
	// (user, quiz) stays active.
	Active *bool `gorm:"uniqueIndex:uniq_user_quiz_active" json:"-"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// AttemptAnswer stores the latest submitted answer for one question of an
// attempt, overwrite semantics. Answer holds the raw payload: a single option
// id for single_choice, an option id array for multiple_choice, a string for
// text questions. IsCorrect and Marks stay zero until finalization.
type AttemptAnswer struct {
	UUIDBase
	AttemptID  string          `gorm:"index;type:varchar(36);uniqueIndex:uniq_attempt_question" json:"attemptId"`
	QuestionID uint            `gorm:"uniqueIndex:uniq_attempt_question" json:"questionId"`
	Answer     json.RawMessage `gorm:"type:json" json:"answer"`
	IsCorrect  bool            `gorm:"default:false" json:"isCorrect"`
	Marks      int             `gorm:"default:0" json:"marks"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}
