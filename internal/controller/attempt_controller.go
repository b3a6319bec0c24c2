package controller

import (
	"encoding/json"

	"online_quiz_backend/internal/service"
	"online_quiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AttemptController is the user-facing surface of the session engine. Every
// handler runs behind the access gate: authentication, role check and the
// per-subject rate window all precede these functions.
type AttemptController struct {
	Sessions *service.SessionService
	Reports  *service.ReportService
}

func NewAttemptController(sessions *service.SessionService, reports *service.ReportService) *AttemptController {
	return &AttemptController{Sessions: sessions, Reports: reports}
}

// @Summary Quizzes available to the caller, with progress
// @Tags user
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/user/quizzes [get]
func (c *AttemptController) MyQuizzes(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	rows, err := c.Reports.MyQuizzes(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

// @Summary Start a timed attempt
// @Tags user
// @Produce json
// @Security ApiKeyAuth
// @Param quizId path int true "quiz id"
// @Success 201 {object} util.Response
// @Router /api/user/quizzes/{quizId}/start [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	quizID, err := pathID(ctx, "quizId")
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	started, err := c.Sessions.Start(ctx.Request.Context(), claims.UserID, quizID)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Created(ctx, started)
}

// @Summary Questions for the caller's running attempt
// @Tags user
// @Produce json
// @Security ApiKeyAuth
// @Param quizId path int true "quiz id"
// @Success 200 {object} util.Response
// @Router /api/user/quizzes/{quizId}/questions [get]
func (c *AttemptController) Paper(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	quizID, err := pathID(ctx, "quizId")
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	paper, err := c.Reports.AttemptPaper(ctx.Request.Context(), claims.UserID, quizID)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, paper)
}

type RecordAnswerReq struct {
	QuestionID uint            `json:"questionId" binding:"required"`
	Answer     json.RawMessage `json:"answer" binding:"required"`
}

// @Summary Record or overwrite one answer
// @Tags user
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param attemptId path string true "attempt id"
// @Param body body RecordAnswerReq true "answer payload"
// @Success 200 {object} util.Response
// @Router /api/user/attempts/{attemptId}/answers [post]
func (c *AttemptController) RecordAnswer(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req RecordAnswerReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attemptID := ctx.Param("attemptId")
	if err := c.Sessions.RecordAnswer(ctx.Request.Context(), claims.UserID, attemptID, req.QuestionID, req.Answer); err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary Submit the attempt and freeze its score
// @Tags user
// @Produce json
// @Security ApiKeyAuth
// @Param attemptId path string true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/user/attempts/{attemptId}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	attemptID := ctx.Param("attemptId")
	result, err := c.Sessions.Submit(ctx.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary Attempt state and answers
// @Tags user
// @Produce json
// @Security ApiKeyAuth
// @Param attemptId path string true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/user/attempts/{attemptId} [get]
func (c *AttemptController) Get(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	detail, err := c.Sessions.GetAttempt(ctx.Request.Context(), claims, ctx.Param("attemptId"))
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"attempt": detail.Attempt,
		"answers": detail.Answers,
		"status":  c.Sessions.LogicalStatus(detail.Attempt),
	})
}

// @Summary Result breakdown of the caller's completed attempt for a quiz
// @Tags user
// @Produce json
// @Security ApiKeyAuth
// @Param quizId path int true "quiz id"
// @Success 200 {object} util.Response
// @Router /api/user/quizzes/{quizId}/result [get]
func (c *AttemptController) Result(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	quizID, err := pathID(ctx, "quizId")
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	result, err := c.Reports.ResultByQuiz(ctx.Request.Context(), claims, quizID)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
