package model

type QuizStatus string

const (
	QuizDraft  QuizStatus = "draft"
	QuizActive QuizStatus = "active"
)

// swagger:model Quiz
type Quiz struct {
	BaseModel
	Title           string     `gorm:"size:255;not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	NumQuestions    int        `gorm:"not null" json:"numQuestions"`
	TotalScore      int        `gorm:"not null" json:"totalScore"`
	DurationMinutes int        `gorm:"not null" json:"durationMinutes"`
	Status          QuizStatus `gorm:"size:20;default:'draft'" json:"status"`
	CreatedBy       uint       `gorm:"index" json:"createdBy"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// QuizQuestion maps a question into a quiz at a position with a mark weight.
type QuizQuestion struct {
	BaseModel
	QuizID         uint `gorm:"index;uniqueIndex:uniq_quiz_question;uniqueIndex:uniq_quiz_number" json:"quizId"`
	QuestionID     uint `gorm:"uniqueIndex:uniq_quiz_question" json:"questionId"`
	QuestionNumber int  `gorm:"not null;uniqueIndex:uniq_quiz_number" json:"questionNumber"`
	Marks          int  `gorm:"not null" json:"marks"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}
