package repository

import (
	"context"

	"online_quiz_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

// Create stores a question with its options in one transaction.
func (r *QuestionRepository) Create(ctx context.Context, question *model.Question) error {
	return runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Create(question).Error
	})
}

func (r *QuestionRepository) FindByID(ctx context.Context, id uint) (*model.Question, error) {
	var q model.Question
	err := runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Preload("Options").First(&q, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuestionRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.Question, error) {
	var qs []model.Question
	err := runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Preload("Options").Where("id IN ?", ids).Find(&qs).Error
	})
	return qs, err
}

func (r *QuestionRepository) Update(ctx context.Context, question *model.Question) error {
	return runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Transaction(func(tx *gorm.DB) error {
			if err := tx.Unscoped().Where("question_id = ?", question.ID).Delete(&model.QuestionOption{}).Error; err != nil {
				return err
			}
			return tx.Save(question).Error
		})
	})
}

func (r *QuestionRepository) Delete(ctx context.Context, id uint) error {
	return runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("question_id = ?", id).Delete(&model.QuestionOption{}).Error; err != nil {
				return err
			}
			return tx.Delete(&model.Question{}, id).Error
		})
	})
}

func (r *QuestionRepository) List(ctx context.Context, page, limit int) ([]model.Question, int64, error) {
	var qs []model.Question
	var total int64
	err := runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		if err := tx.Model(&model.Question{}).Count(&total).Error; err != nil {
			return err
		}
		q := tx.Preload("Options").Order("created_at desc")
		if limit > 0 {
			q = q.Offset((page - 1) * limit).Limit(limit)
		}
		return q.Find(&qs).Error
	})
	return qs, total, err
}
