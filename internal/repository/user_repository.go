package repository

import (
	"context"
	"time"

	"online_quiz_backend/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Create(user).Error
	})
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.First(&user, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Where("email = ?", email).First(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id uint) error {
	return runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		return tx.Model(&model.User{}).Where("id = ?", id).
			Update("last_login", time.Now()).Error
	})
}

func (r *UserRepository) List(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64
	err := runBounded(ctx, r.DB, func(tx *gorm.DB) error {
		if err := tx.Model(&model.User{}).Count(&total).Error; err != nil {
			return err
		}
		offset := (page - 1) * limit
		return tx.Order("created_at desc").Offset(offset).Limit(limit).Find(&users).Error
	})
	return users, total, err
}
