package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/bravesteps/notify"
	"github.com/cppla/bravesteps/utils"
)

// NotificationController owns reminder preferences and the admin triggers.
type NotificationController struct {
	db          *gorm.DB
	reminder    *notify.Reminder
	notifier    notify.Notifier
	defaultTime string
	log         *zap.Logger
}

func NewNotificationController(db *gorm.DB, reminder *notify.Reminder, notifier notify.Notifier, defaultTime string, log *zap.Logger) *NotificationController {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationController{db: db, reminder: reminder, notifier: notifier, defaultTime: defaultTime, log: log}
}

func (n *NotificationController) GetSettings(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	s, err := notify.LoadSettings(ctx.Request.Context(), n.db, userID, n.defaultTime)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50070, "failed to load notification settings")
		return
	}
	utils.Success(ctx, s)
}

// UpdateSettings applies a partial update; omitted fields keep their value.
func (n *NotificationController) UpdateSettings(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var upd notify.SettingsUpdate
	if err := ctx.ShouldBindJSON(&upd); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}
	s, err := notify.SaveSettings(ctx.Request.Context(), n.db, userID, upd, n.defaultTime)
	if errors.Is(err, notify.ErrInvalidReminderTime) {
		utils.Error(ctx, http.StatusBadRequest, 40023, err.Error())
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50071, "failed to save notification settings")
		return
	}
	utils.Success(ctx, s)
}

// RunReminders performs one reminder sweep now (admin, or an external cron).
func (n *NotificationController) RunReminders(ctx *gin.Context) {
	rep, err := n.reminder.Run(ctx.Request.Context())
	if err != nil {
		n.log.Error("reminder sweep failed", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50072, "failed to run reminders")
		return
	}
	utils.Success(ctx, rep)
}

// SendTest delivers a test message to the calling admin.
func (n *NotificationController) SendTest(ctx *gin.Context) {
	user, ok := currentUser(ctx, n.db)
	if !ok {
		return
	}
	err := n.notifier.Notify(ctx.Request.Context(), notify.Message{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Title:  "Brave Steps - Test",
		Body:   "This is a test notification to verify the notification system is working.",
	})
	if err != nil {
		n.log.Warn("test notification failed", zap.Error(err))
	}
	utils.Success(ctx, gin.H{"success": err == nil})
}
