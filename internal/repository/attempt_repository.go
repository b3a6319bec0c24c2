package repository

import (
	"context"
	"errors"

	"online_quiz_backend/internal/model"
	"online_quiz_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// CreateInProgress inserts a new in_progress attempt. The check-then-insert
// runs in one transaction and the (user_id, quiz_id, active) unique index
// backs it, so two concurrent starts cannot both succeed. Finalized rows
// carry a NULL active marker and never block a retake.
func (r *AttemptRepository) CreateInProgress(ctx context.Context, attempt *model.QuizAttempt) error {
	active := true
	attempt.Active = &active
	err := runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&model.QuizAttempt{}).
				Where("user_id = ? AND quiz_id = ? AND status = ?",
					attempt.UserID, attempt.QuizID, model.AttemptInProgress).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return util.ErrAlreadyInProgress
			}
			return tx.Create(attempt).Error
		})
	})
	if err != nil && isDuplicateKey(err) {
		return util.ErrAlreadyInProgress
	}
	return err
}

func (r *AttemptRepository) FindByID(ctx context.Context, id string) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.First(&attempt, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) FindByUserAndQuiz(ctx context.Context, userID, quizID uint, status model.AttemptStatus) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Where("user_id = ? AND quiz_id = ? AND status = ?", userID, quizID, status).
			Order("created_at desc").First(&attempt).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) ListByUser(ctx context.Context, userID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Where("user_id = ?", userID).Order("created_at desc").Find(&attempts).Error
	})
	return attempts, err
}

func (r *AttemptRepository) ListByQuiz(ctx context.Context, quizID uint, page, limit int) ([]model.QuizAttempt, int64, error) {
	var attempts []model.QuizAttempt
	var total int64
	err := runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		q := tx.Model(&model.QuizAttempt{}).Where("quiz_id = ?", quizID)
		if err := q.Count(&total).Error; err != nil {
			return err
		}
		if limit > 0 {
			q = q.Offset((page - 1) * limit).Limit(limit)
		}
		return q.Order("created_at desc").Find(&attempts).Error
	})
	return attempts, total, err
}

// UpsertAnswer records the latest answer for a question, overwriting any
// earlier value. Last write wins per question id.
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, answer *model.AttemptAnswer) error {
	return runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer", "updated_at"}),
		}).Create(answer).Error
	})
}

func (r *AttemptRepository) ListAnswers(ctx context.Context, attemptID string) ([]model.AttemptAnswer, error) {
	var answers []model.AttemptAnswer
	err := runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Where("attempt_id = ?", attemptID).Find(&answers).Error
	})
	return answers, err
}

// Finalize writes the terminal state, score and graded answers in one
// transaction. The caller holds the per-attempt lock, so this runs at most
// once per attempt.
func (r *AttemptRepository) Finalize(ctx context.Context, attempt *model.QuizAttempt, answers []model.AttemptAnswer) error {
	return runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&model.QuizAttempt{}).Where("id = ?", attempt.ID).
				Updates(map[string]interface{}{
					"status":       attempt.Status,
					"score":        attempt.Score,
					"expired":      attempt.Expired,
					"completed_at": attempt.CompletedAt,
					"active":       nil,
				}).Error; err != nil {
				return err
			}
			for i := range answers {
				if err := tx.Model(&model.AttemptAnswer{}).Where("id = ?", answers[i].ID).
					Updates(map[string]interface{}{
						"is_correct": answers[i].IsCorrect,
						"marks":      answers[i].Marks,
					}).Error; err != nil {
					return err
				}
			}
			return nil
		})
	})
}
