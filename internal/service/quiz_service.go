package service

import (
	"context"
	"errors"
	"fmt"

	"online_quiz_backend/internal/model"
	"online_quiz_backend/internal/repository"
	"online_quiz_backend/internal/util"

	"gorm.io/gorm"
)

// QuizService covers the administrator side of quizzes: CRUD, status
// transitions and the question mapping. The session engine reads quizzes
// through its own repository handle and never mutates them.
type QuizService struct {
	QuizRepo     *repository.QuizRepository
	QuestionRepo *repository.QuestionRepository
}

func NewQuizService(quizRepo *repository.QuizRepository, questionRepo *repository.QuestionRepository) *QuizService {
	return &QuizService{QuizRepo: quizRepo, QuestionRepo: questionRepo}
}

type QuizReq struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	NumQuestions    *int    `json:"numQuestions"`
	TotalScore      *int    `json:"totalScore"`
	DurationMinutes *int    `json:"durationMinutes"`
	Status          *string `json:"status"`
}

func (s *QuizService) Create(ctx context.Context, creatorID uint, req QuizReq) (*model.Quiz, error) {
	if req.Title == nil || *req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", util.ErrValidation)
	}
	if req.DurationMinutes == nil || *req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", util.ErrValidation)
	}
	if req.TotalScore == nil || *req.TotalScore <= 0 {
		return nil, fmt.Errorf("%w: total score must be positive", util.ErrValidation)
	}
	if req.NumQuestions == nil || *req.NumQuestions <= 0 {
		return nil, fmt.Errorf("%w: number of questions must be positive", util.ErrValidation)
	}

	quiz := &model.Quiz{
		Title:           *req.Title,
		NumQuestions:    *req.NumQuestions,
		TotalScore:      *req.TotalScore,
		DurationMinutes: *req.DurationMinutes,
		Status:          model.QuizDraft,
		CreatedBy:       creatorID,
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}
	if req.Status != nil {
		status, err := parseQuizStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		quiz.Status = status
	}

	if err := s.QuizRepo.Create(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) Update(ctx context.Context, id uint, req QuizReq) (*model.Quiz, error) {
	quiz, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}
	if req.NumQuestions != nil {
		quiz.NumQuestions = *req.NumQuestions
	}
	if req.TotalScore != nil {
		quiz.TotalScore = *req.TotalScore
	}
	if req.DurationMinutes != nil {
		quiz.DurationMinutes = *req.DurationMinutes
	}
	if req.Status != nil {
		status, err := parseQuizStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		quiz.Status = status
	}

	if err := s.QuizRepo.Update(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) Delete(ctx context.Context, id uint) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	return s.QuizRepo.Delete(ctx, id)
}

func (s *QuizService) Get(ctx context.Context, id uint) (*model.Quiz, []model.QuizQuestion, error) {
	quiz, err := s.find(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	mappings, err := s.QuizRepo.ListQuestionMappings(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return quiz, mappings, nil
}

func (s *QuizService) List(ctx context.Context, page, limit int) ([]model.Quiz, int64, error) {
	return s.QuizRepo.List(ctx, page, limit)
}

type QuestionMappingReq struct {
	QuestionID     uint `json:"questionId" binding:"required"`
	QuestionNumber int  `json:"questionNumber" binding:"required"`
	Marks          int  `json:"marks" binding:"required"`
}

// MapQuestions replaces the quiz's question set. The mapping must match the
// quiz configuration: exactly NumQuestions questions, marks summing to
// TotalScore, every referenced question existing.
func (s *QuizService) MapQuestions(ctx context.Context, quizID uint, reqs []QuestionMappingReq) error {
	quiz, err := s.find(ctx, quizID)
	if err != nil {
		return err
	}

	if len(reqs) != quiz.NumQuestions {
		return fmt.Errorf("%w: expected %d questions, got %d", util.ErrValidation, quiz.NumQuestions, len(reqs))
	}

	ids := make([]uint, len(reqs))
	totalMarks := 0
	for i, req := range reqs {
		ids[i] = req.QuestionID
		totalMarks += req.Marks
	}
	if totalMarks != quiz.TotalScore {
		return fmt.Errorf("%w: marks must sum to %d, got %d", util.ErrValidation, quiz.TotalScore, totalMarks)
	}

	questions, err := s.QuestionRepo.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(questions) != len(ids) {
		return util.ErrQuestionNotFound
	}

	mappings := make([]model.QuizQuestion, len(reqs))
	for i, req := range reqs {
		mappings[i] = model.QuizQuestion{
			QuizID:         quizID,
			QuestionID:     req.QuestionID,
			QuestionNumber: req.QuestionNumber,
			Marks:          req.Marks,
		}
	}
	return s.QuizRepo.ReplaceQuestions(ctx, quizID, mappings)
}

func (s *QuizService) find(ctx context.Context, id uint) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	return quiz, nil
}

func parseQuizStatus(raw string) (model.QuizStatus, error) {
	switch model.QuizStatus(raw) {
	case model.QuizDraft, model.QuizActive:
		return model.QuizStatus(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown quiz status %q", util.ErrValidation, raw)
	}
}
