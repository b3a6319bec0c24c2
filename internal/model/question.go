package model

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TextQuestion   QuestionType = "text"
)

// swagger:model Question
type Question struct {
	BaseModel
	Text    string           `gorm:"type:text;not null" json:"text"`
	Type    QuestionType     `gorm:"size:20;default:'single_choice'" json:"type"`
	Options []QuestionOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// QuestionOption is one selectable answer. IsCorrect never reaches the
// user-facing question-serving path; scoring reads it server-side only.
type QuestionOption struct {
	BaseModel
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect,omitempty"`
}

func (QuestionOption) TableName() string {
	return "question_options"
}
