package controller

import (
	"strconv"

	"online_quiz_backend/internal/service"
	"online_quiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	Service *service.QuizService
}

func NewQuizController(svc *service.QuizService) *QuizController {
	return &QuizController{Service: svc}
}

// @Summary Create a quiz
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.QuizReq true "quiz payload"
// @Success 201 {object} util.Response
// @Router /api/admin/quizzes [post]
func (c *QuizController) Create(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.QuizReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.Service.Create(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// @Summary List quizzes
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "page" default(1)
// @Param limit query int false "page size" default(20)
// @Success 200 {object} util.Response
// @Router /api/admin/quizzes [get]
func (c *QuizController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	quizzes, total, err := c.Service.List(ctx.Request.Context(), page, limit)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"items": quizzes, "total": total})
}

// @Summary Quiz detail with question mapping
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "quiz id"
// @Success 200 {object} util.Response
// @Router /api/admin/quizzes/{id} [get]
func (c *QuizController) Get(ctx *gin.Context) {
	id, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	quiz, mappings, err := c.Service.Get(ctx.Request.Context(), id)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"quiz": quiz, "questions": mappings})
}

// @Summary Update a quiz
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "quiz id"
// @Param body body service.QuizReq true "quiz payload"
// @Success 200 {object} util.Response
// @Router /api/admin/quizzes/{id} [put]
func (c *QuizController) Update(ctx *gin.Context) {
	id, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	var req service.QuizReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.Service.Update(ctx.Request.Context(), id, req)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary Delete a quiz
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "quiz id"
// @Success 200 {object} util.Response
// @Router /api/admin/quizzes/{id} [delete]
func (c *QuizController) Delete(ctx *gin.Context) {
	id, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	if err := c.Service.Delete(ctx.Request.Context(), id); err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

type MapQuestionsReq struct {
	Questions []service.QuestionMappingReq `json:"questions" binding:"required"`
}

// @Summary Replace a quiz's question mapping
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "quiz id"
// @Param body body MapQuestionsReq true "question mapping"
// @Success 200 {object} util.Response
// @Router /api/admin/quizzes/{id}/questions [post]
func (c *QuizController) MapQuestions(ctx *gin.Context) {
	id, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	var req MapQuestionsReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.MapQuestions(ctx.Request.Context(), id, req.Questions); err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

func pathID(ctx *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	return uint(id), err
}
