package controller

import (
	"strconv"

	"online_quiz_backend/internal/service"
	"online_quiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ReportController serves the admin read side: cross-user attempt listings
// and full attempt breakdowns.
type ReportController struct {
	Reports *service.ReportService
	Users   *service.UserService
}

func NewReportController(reports *service.ReportService, users *service.UserService) *ReportController {
	return &ReportController{Reports: reports, Users: users}
}

// @Summary Attempts on a quiz across all users
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "quiz id"
// @Param page query int false "page" default(1)
// @Param limit query int false "page size" default(20)
// @Success 200 {object} util.Response
// @Router /api/admin/quizzes/{id}/attempts [get]
func (c *ReportController) QuizAttempts(ctx *gin.Context) {
	quizID, err := pathID(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	rows, total, err := c.Reports.QuizAttempts(ctx.Request.Context(), quizID, page, limit)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"items": rows, "total": total})
}

// @Summary Full breakdown of any attempt
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param attemptId path string true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/admin/attempts/{attemptId} [get]
func (c *ReportController) AttemptDetail(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.Reports.Result(ctx.Request.Context(), claims, ctx.Param("attemptId"))
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary List registered users
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "page" default(1)
// @Param limit query int false "page size" default(20)
// @Success 200 {object} util.Response
// @Router /api/admin/users [get]
func (c *ReportController) ListUsers(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	users, total, err := c.Users.List(ctx.Request.Context(), page, limit)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"items": users, "total": total})
}
