package controller

import (
	"strconv"

	"online_quiz_backend/internal/service"
	"online_quiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuestionController struct {
	Service *service.QuestionService
}

func NewQuestionController(svc *service.QuestionService) *QuestionController {
	return &QuestionController{Service: svc}
}

// @Summary Create a question with its options
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.QuestionReq true "question payload"
// @Success 201 {object} util.Response
// @Router /api/admin/questions [post]
func (c *QuestionController) Create(ctx *gin.Context) {
	var req service.QuestionReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question, err := c.Service.Create(ctx.Request.Context(), req)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Created(ctx, question)
}

// @Summary List questions
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "page" default(1)
// @Param limit query int false "page size" default(20)
// @Success 200 {object} util.Response
// @Router /api/admin/questions [get]
func (c *QuestionController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	questions, total, err := c.Service.List(ctx.Request.Context(), page, limit)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"items": questions, "total": total})
}

// @Summary Question detail
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "question id"
// @Success 200 {object} util.Response
// @Router /api/admin/questions/{id} [get]
func (c *QuestionController) Get(ctx *gin.Context) {
	id, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	question, err := c.Service.Get(ctx.Request.Context(), id)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, question)
}

// @Summary Update a question
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "question id"
// @Param body body service.QuestionReq true "question payload"
// @Success 200 {object} util.Response
// @Router /api/admin/questions/{id} [put]
func (c *QuestionController) Update(ctx *gin.Context) {
	id, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	var req service.QuestionReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question, err := c.Service.Update(ctx.Request.Context(), id, req)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, question)
}

// @Summary Delete a question
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "question id"
// @Success 200 {object} util.Response
// @Router /api/admin/questions/{id} [delete]
func (c *QuestionController) Delete(ctx *gin.Context) {
	id, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	if err := c.Service.Delete(ctx.Request.Context(), id); err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
