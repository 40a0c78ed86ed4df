package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/bravesteps/config"
	"github.com/cppla/bravesteps/progression"
	"github.com/cppla/bravesteps/utils"
)

// ConfigController serves environment-driven UI configuration.
type ConfigController struct{}

func NewConfigController() *ConfigController { return &ConfigController{} }

// GetApp returns the time zone, reminder defaults and XP rules the UI explains to users.
func (c *ConfigController) GetApp(ctx *gin.Context) {
	cfg := config.Get()
	utils.Success(ctx, gin.H{
		"timeZone":            cfg.TimeZone,
		"defaultReminderTime": cfg.DefaultReminderTime,
		"minAnxiety":          progression.MinAnxiety,
		"maxAnxiety":          progression.MaxAnxiety,
		"xp": gin.H{
			"base":                progression.BaseXP,
			"medicationFreeBonus": progression.MedicationFreeBonus,
			"earlyBonus":          progression.EarlyBonus,
			"earlyCutoffHour":     progression.EarlyCutoffHour,
		},
		"levelCurve": gin.H{
			"firstLevelCost": progression.LevelCost(1),
			"costStep":       progression.LevelCost(2) - progression.LevelCost(1),
		},
	})
}
