package service

import (
	"context"
	"errors"

	"online_quiz_backend/internal/config"
	"online_quiz_backend/internal/model"
	"online_quiz_backend/internal/repository"
	"online_quiz_backend/internal/util"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

func (s *AuthService) Register(ctx context.Context, user *model.User) error {
	_, err := s.UserRepo.FindByEmail(ctx, user.Email)
	if err == nil {
		return util.ErrEmailRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.Password = string(hashedPassword)
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	return s.UserRepo.Create(ctx, user)
}

// Login exchanges valid credentials for a signed bearer token. The server
// keeps no session state; the token alone proves identity until it expires.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.UserRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, util.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, util.ErrInvalidCredentials
	}
	if user.Disabled {
		return "", nil, util.ErrForbidden
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}

	_ = s.UserRepo.UpdateLastLogin(ctx, user.ID)
	return token, user, nil
}
