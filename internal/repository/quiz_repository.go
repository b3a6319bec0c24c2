package repository

import (
	"context"

	"online_quiz_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) Create(ctx context.Context, quiz *model.Quiz) error {
	return runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Create(quiz).Error
	})
}

func (r *QuizRepository) FindByID(ctx context.Context, id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.First(&quiz, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizRepository) Update(ctx context.Context, quiz *model.Quiz) error {
	return runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Save(quiz).Error
	})
}

func (r *QuizRepository) Delete(ctx context.Context, id uint) error {
	return runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("quiz_id = ?", id).Delete(&model.QuizQuestion{}).Error; err != nil {
				return err
			}
			return tx.Delete(&model.Quiz{}, id).Error
		})
	})
}

func (r *QuizRepository) List(ctx context.Context, page, limit int) ([]model.Quiz, int64, error) {
	var quizzes []model.Quiz
	var total int64
	err := runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		if err := tx.Model(&model.Quiz{}).Count(&total).Error; err != nil {
			return err
		}
		q := tx.Order("created_at desc")
		if limit > 0 {
			q = q.Offset((page - 1) * limit).Limit(limit)
		}
		return q.Find(&quizzes).Error
	})
	return quizzes, total, err
}

func (r *QuizRepository) ListActive(ctx context.Context) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Where("status = ?", model.QuizActive).Order("created_at desc").Find(&quizzes).Error
	})
	return quizzes, err
}

// ReplaceQuestions swaps the full question mapping of a quiz in one
// transaction.
func (r *QuizRepository) ReplaceQuestions(ctx context.Context, quizID uint, mappings []model.QuizQuestion) error {
	return runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Transaction(func(tx *gorm.DB) error {
			if err := tx.Unscoped().Where("quiz_id = ?", quizID).Delete(&model.QuizQuestion{}).Error; err != nil {
				return err
			}
			if len(mappings) == 0 {
				return nil
			}
			return tx.Create(&mappings).Error
		})
	})
}

func (r *QuizRepository) ListQuestionMappings(ctx context.Context, quizID uint) ([]model.QuizQuestion, error) {
	var mappings []model.QuizQuestion
	err := runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Where("quiz_id = ?", quizID).Order("question_number asc").Find(&mappings).Error
	})
	return mappings, err
}
