package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/bravesteps/config"
	"github.com/cppla/bravesteps/controllers"
	"github.com/cppla/bravesteps/insights"
	"github.com/cppla/bravesteps/middleware"
	"github.com/cppla/bravesteps/notify"
	"github.com/cppla/bravesteps/progression"
	"github.com/cppla/bravesteps/utils"
)

// Deps are the long-lived services the HTTP layer is built on.
type Deps struct {
	Config    config.AppConfig
	DB        *gorm.DB
	Log       *zap.Logger
	Engine    *progression.Engine
	Coach     *insights.Coach
	Reminder  *notify.Reminder
	Notifier  notify.Notifier
	Blacklist *utils.TokenBlacklist
	Guard     *utils.LoginGuard
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	loc, err := cfg.Location()
	if err != nil {
		loc = time.UTC
	}

	r := gin.New()
	// Access log goes to its own rolling file when configured
	accessLog := log
	if cfg.GinPath != "" {
		accessLog = utils.NewRollingFileLogger(cfg.GinPath, cfg)
	}
	r.Use(middleware.RequestID())
	r.Use(ginzap.Ginzap(accessLog, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(accessLog, false))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(d.DB, d.Blacklist, d.Guard, cfg.TokenTTL(), log)
	taskController := controllers.NewTaskController(d.DB)
	entryController := controllers.NewEntryController(d.DB, d.Engine, loc, log)
	achievementController := controllers.NewAchievementController(d.DB)
	statsController := controllers.NewStatsController(d.DB)
	activityController := controllers.NewActivityController(d.DB, loc)
	notificationController := controllers.NewNotificationController(d.DB, d.Reminder, d.Notifier, cfg.DefaultReminderTime, log)
	insightController := controllers.NewInsightController(d.DB, d.Coach, loc)
	adminController := controllers.NewAdminController(d.DB, log)
	configController := controllers.NewConfigController()

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	api.GET("/config/app", configController.GetApp)

	authRequired := middleware.AuthRequired(d.Blacklist)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", authRequired, authController.Logout)
	authGroup.GET("/me", authRequired, authController.Me)

	protected := api.Group("")
	protected.Use(authRequired)

	protected.GET("/tasks", taskController.ListTasks)
	protected.GET("/tasks/week/:week", taskController.GetByWeek)
	protected.GET("/tasks/current", taskController.CurrentTask)

	protected.POST("/entries", entryController.Create)
	protected.GET("/entries/recent", entryController.Recent)
	protected.GET("/entries/today", entryController.Today)
	protected.GET("/entries/week", entryController.Week)

	protected.GET("/achievements", achievementController.ListAchievements)
	protected.GET("/achievements/mine", achievementController.Mine)

	protected.GET("/stats/overview", statsController.GetOverview)

	protected.POST("/activity", activityController.LogEvent)

	protected.GET("/notifications/settings", notificationController.GetSettings)
	protected.PUT("/notifications/settings", notificationController.UpdateSettings)

	protected.POST("/ai/completion-message", insightController.CompletionMessage)
	protected.GET("/ai/weekly-insights", insightController.WeeklyInsights)
	protected.GET("/ai/greeting", insightController.Greeting)
	protected.GET("/ai/tip", insightController.Tip)

	admin := protected.Group("/admin")
	admin.Use(middleware.AdminRequired())
	admin.GET("/clients", adminController.ListClients)
	admin.PATCH("/clients/:id", adminController.UpdateClient)
	admin.GET("/clients/:id/activity", adminController.ClientActivity)
	admin.GET("/clients/:id/export", adminController.ExportClient)
	admin.GET("/clients/:id/activity-logs", activityController.Logs)
	admin.GET("/clients/:id/engagement", activityController.Engagement)
	admin.GET("/clients/:id/timeline", activityController.Timeline)
	admin.GET("/clients/:id/summary", insightController.ClientSummary)
	admin.PATCH("/tasks/:id", adminController.UpdateTask)
	admin.POST("/notifications/reminders", notificationController.RunReminders)
	admin.POST("/notifications/test", notificationController.SendTest)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
