package util

import "errors"

// Stable error kinds surfaced by the session and access layers. Controllers
// map them 1:1 to HTTP status codes.
var (
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrForbidden            = errors.New("forbidden")
	ErrRateLimited          = errors.New("rate limit exceeded")
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailRegistered      = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrQuizNotFound         = errors.New("quiz not found")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrQuizNotActive        = errors.New("quiz is not active")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrAlreadyInProgress    = errors.New("an attempt for this quiz is already in progress")
	ErrAttemptNotInProgress = errors.New("attempt is not in progress")
	ErrDeadlineExceeded     = errors.New("attempt deadline exceeded")
	ErrValidation           = errors.New("invalid request payload")
	ErrStorageUnavailable   = errors.New("storage temporarily unavailable")
)
