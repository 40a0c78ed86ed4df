package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/progression"
	"github.com/cppla/bravesteps/utils"
)

// StatsController provides the dashboard overview.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// Overview is the progression summary shown on the dashboard.
type Overview struct {
	CurrentLevel         int                       `json:"currentLevel"`
	TotalXP              int                       `json:"totalXp"`
	LevelProgress        progression.LevelProgress `json:"levelProgress"`
	CurrentStreak        int                       `json:"currentStreak"`
	LongestStreak        int                       `json:"longestStreak"`
	TotalTasks           int64                     `json:"totalTasks"`
	AchievementsUnlocked int64                     `json:"achievementsUnlocked"`
	TotalAchievements    int64                     `json:"totalAchievements"`
	TotalDamageDealt     int64                     `json:"totalDamageDealt"`
}

// GetOverview aggregates the user's level, streaks and totals.
func (s *StatsController) GetOverview(ctx *gin.Context) {
	user, ok := currentUser(ctx, s.db)
	if !ok {
		return
	}
	db := s.db.WithContext(ctx.Request.Context())

	o := Overview{
		CurrentLevel:  user.CurrentLevel,
		TotalXP:       user.TotalXP,
		LevelProgress: progression.ProgressFor(user.TotalXP),
		CurrentStreak: user.CurrentStreak,
		LongestStreak: user.LongestStreak,
	}

	var agg struct {
		Tasks  int64
		Damage int64
	}
	if err := db.Model(&models.Entry{}).
		Select("COUNT(*) AS tasks, COALESCE(SUM(anxiety_before - anxiety_during), 0) AS damage").
		Where("user_id = ?", user.ID).
		Scan(&agg).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to aggregate entries")
		return
	}
	o.TotalTasks, o.TotalDamageDealt = agg.Tasks, agg.Damage

	if err := db.Model(&models.UserAchievement{}).Where("user_id = ?", user.ID).Count(&o.AchievementsUnlocked).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to count achievements")
		return
	}
	if err := db.Model(&models.Achievement{}).Count(&o.TotalAchievements).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to count achievements")
		return
	}
	utils.Success(ctx, o)
}
