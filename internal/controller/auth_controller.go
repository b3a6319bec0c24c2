package controller

import (
	"online_quiz_backend/internal/model"
	"online_quiz_backend/internal/service"
	"online_quiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	Auth  *service.AuthService
	Users *service.UserService
}

func NewAuthController(auth *service.AuthService, users *service.UserService) *AuthController {
	return &AuthController{Auth: auth, Users: users}
}

type RegisterReq struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// @Summary Register a new user account
// @Tags auth
// @Accept json
// @Produce json
// @Param body body RegisterReq true "registration payload"
// @Success 201 {object} util.Response
// @Router /api/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req RegisterReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user := &model.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     model.RoleUser,
	}
	if err := c.Auth.Register(ctx.Request.Context(), user); err != nil {
		util.FailFromError(ctx, err)
		return
	}

	util.Created(ctx, user)
}

type LoginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// @Summary Exchange credentials for a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param body body LoginReq true "login payload"
// @Success 200 {object} util.Response
// @Router /api/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	token, user, err := c.Auth.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"token": token,
		"user":  user,
	})
}

// @Summary Current user's profile
// @Tags auth
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/profile [get]
func (c *AuthController) GetProfile(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	user, err := c.Users.GetProfile(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.FailFromError(ctx, err)
		return
	}
	util.Success(ctx, user)
}
