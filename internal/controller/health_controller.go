package controller

import (
	"time"

	"online_quiz_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	DB      *gorm.DB
	started time.Time
}

func NewHealthController(db *gorm.DB) *HealthController {
	return &HealthController{DB: db, started: time.Now()}
}

// @Summary Service health
// @Tags health
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/health [get]
func (c *HealthController) Check(ctx *gin.Context) {
	dbStatus := "up"
	if sqlDB, err := c.DB.DB(); err != nil || sqlDB.Ping() != nil {
		dbStatus = "down"
	}
	util.Success(ctx, gin.H{
		"status":   "ok",
		"database": dbStatus,
		"uptime":   time.Since(c.started).Truncate(time.Second).String(),
	})
}
