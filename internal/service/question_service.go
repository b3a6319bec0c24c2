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

type QuestionService struct {
	QuestionRepo *repository.QuestionRepository
}

func NewQuestionService(questionRepo *repository.QuestionRepository) *QuestionService {
	return &QuestionService{QuestionRepo: questionRepo}
}

type OptionReq struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"isCorrect"`
}

type QuestionReq struct {
	Text    string      `json:"text" binding:"required"`
	Type    string      `json:"type" binding:"required"`
	Options []OptionReq `json:"options"`
}

func (s *QuestionService) Create(ctx context.Context, req QuestionReq) (*model.Question, error) {
	qType, err := validateQuestionReq(req)
	if err != nil {
		return nil, err
	}

	question := &model.Question{
		Text: req.Text,
		Type: qType,
	}
	for _, opt := range req.Options {
		question.Options = append(question.Options, model.QuestionOption{
			Text:      opt.Text,
			IsCorrect: opt.IsCorrect,
		})
	}

	if err := s.QuestionRepo.Create(ctx, question); err != nil {
		return nil, err
	}
	return question, nil
}

func (s *QuestionService) Update(ctx context.Context, id uint, req QuestionReq) (*model.Question, error) {
	qType, err := validateQuestionReq(req)
	if err != nil {
		return nil, err
	}

	question, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	question.Text = req.Text
	question.Type = qType
	question.Options = nil
	for _, opt := range req.Options {
		question.Options = append(question.Options, model.QuestionOption{
			QuestionID: question.ID,
			Text:       opt.Text,
			IsCorrect:  opt.IsCorrect,
		})
	}

	if err := s.QuestionRepo.Update(ctx, question); err != nil {
		return nil, err
	}
	return question, nil
}

func (s *QuestionService) Delete(ctx context.Context, id uint) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	return s.QuestionRepo.Delete(ctx, id)
}

func (s *QuestionService) Get(ctx context.Context, id uint) (*model.Question, error) {
	return s.find(ctx, id)
}

func (s *QuestionService) List(ctx context.Context, page, limit int) ([]model.Question, int64, error) {
	return s.QuestionRepo.List(ctx, page, limit)
}

func (s *QuestionService) find(ctx context.Context, id uint) (*model.Question, error) {
	question, err := s.QuestionRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}
	return question, nil
}

func validateQuestionReq(req QuestionReq) (model.QuestionType, error) {
	qType := model.QuestionType(req.Type)
	switch qType {
	case model.SingleChoice:
		correct := countCorrect(req.Options)
		if len(req.Options) < 2 || correct != 1 {
			return "", fmt.Errorf("%w: single_choice needs at least two options with exactly one correct", util.ErrValidation)
		}
	case model.MultipleChoice:
		correct := countCorrect(req.Options)
		if len(req.Options) < 2 || correct < 1 {
			return "", fmt.Errorf("%w: multiple_choice needs at least two options with one or more correct", util.ErrValidation)
		}
	case model.TextQuestion:
		if len(req.Options) != 0 {
			return "", fmt.Errorf("%w: text questions take no options", util.ErrValidation)
		}
	default:
		return "", fmt.Errorf("%w: unknown question type %q", util.ErrValidation, req.Type)
	}
	return qType, nil
}

func countCorrect(options []OptionReq) int {
	n := 0
	for _, opt := range options {
		if opt.IsCorrect {
			n++
		}
	}
	return n
}
