package util

import (
	"errors"
	"net/http"

	"online_quiz_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the unified JSON envelope.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

func TooManyRequests(c *gin.Context) {
	c.Header("Retry-After", "1")
	Error(c, http.StatusTooManyRequests, "too many requests")
}

func ServiceUnavailable(c *gin.Context, message string) {
	Error(c, http.StatusServiceUnavailable, message)
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err))
	InternalServerError(c)
}

// FailFromError maps the error taxonomy onto HTTP responses so controllers
// stay thin.
func FailFromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		Unauthorized(c)
	case errors.Is(err, ErrForbidden):
		Forbidden(c)
	case errors.Is(err, ErrRateLimited):
		TooManyRequests(c)
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrQuizNotFound),
		errors.Is(err, ErrQuestionNotFound),
		errors.Is(err, ErrAttemptNotFound):
		Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyInProgress),
		errors.Is(err, ErrAttemptNotInProgress),
		errors.Is(err, ErrQuizNotActive),
		errors.Is(err, ErrDeadlineExceeded):
		Conflict(c, err.Error())
	case errors.Is(err, ErrValidation):
		BadRequest(c, err.Error())
	case errors.Is(err, ErrStorageUnavailable):
		ServiceUnavailable(c, err.Error())
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrEmailRegistered):
		BadRequest(c, err.Error())
	default:
		LogInternalError(c, err)
	}
}
