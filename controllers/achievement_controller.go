package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/utils"
)

type AchievementController struct {
	db *gorm.DB
}

func NewAchievementController(db *gorm.DB) *AchievementController {
	return &AchievementController{db: db}
}

// ListAchievements returns the catalog in display order.
func (a *AchievementController) ListAchievements(ctx *gin.Context) {
	achievements := []models.Achievement{}
	if err := a.db.WithContext(ctx.Request.Context()).Order("sort_order ASC, id ASC").Find(&achievements).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to list achievements")
		return
	}
	utils.Success(ctx, achievements)
}

// Mine returns the user's unlocks with their definitions, newest first.
func (a *AchievementController) Mine(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	unlocked := []models.UserAchievement{}
	if err := a.db.WithContext(ctx.Request.Context()).
		Preload("Achievement").
		Where("user_id = ?", userID).
		Order("unlocked_at DESC, id DESC").
		Find(&unlocked).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to list unlocked achievements")
		return
	}
	utils.Success(ctx, unlocked)
}
