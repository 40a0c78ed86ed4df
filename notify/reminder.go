package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/bravesteps/models"
)

const (
	reminderTitle = "Daily Task Reminder"
	reminderBody  = "Don't forget to complete your daily task. Every step forward counts!"
)

// Report summarizes one reminder pass.
type Report struct {
	NotificationsSent int `json:"notificationsSent"`
	UsersChecked      int `json:"usersChecked"`
	Failures          int `json:"failures"`
}

// Reminder sends due reminders to users who have not completed today's task.
type Reminder struct {
	db       *gorm.DB
	notifier Notifier
	log      *zap.Logger
	loc      *time.Location
	window   time.Duration
	now      func() time.Time
}

// NewReminder builds a Reminder; loc is the zone for users without their own.
func NewReminder(db *gorm.DB, notifier Notifier, log *zap.Logger, loc *time.Location, window time.Duration) *Reminder {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Reminder{db: db, notifier: notifier, log: log, loc: loc, window: window, now: time.Now}
}

type reminderRow struct {
	models.NotificationSetting
	Name     string
	Email    string
	TimeZone string
}

// Run checks every user with reminders enabled once. A failed delivery is logged
// and leaves LastNotifiedAt untouched so the next pass retries.
func (r *Reminder) Run(ctx context.Context) (Report, error) {
	var rows []reminderRow
	err := r.db.WithContext(ctx).
		Table("notification_settings").
		Select("notification_settings.*, users.name, users.email, users.time_zone").
		Joins("JOIN users ON users.id = notification_settings.user_id AND users.deleted_at IS NULL").
		Where("notification_settings.enabled = ?", true).
		Scan(&rows).Error
	if err != nil {
		return Report{}, err
	}

	rep := Report{UsersChecked: len(rows)}
	for _, row := range rows {
		u := models.User{ID: row.UserID, TimeZone: row.TimeZone}
		now := r.now().In(u.Location(r.loc))

		var todays int64
		if err := r.db.WithContext(ctx).Model(&models.Entry{}).
			Where("user_id = ? AND completion_day = ?", row.UserID, now.Format("2006-01-02")).
			Count(&todays).Error; err != nil {
			return rep, err
		}

		due := ShouldRemind(Candidate{
			Enabled:        row.Enabled,
			ReminderTime:   row.ReminderTime,
			LastNotifiedAt: row.LastNotifiedAt,
			HasEntryToday:  todays > 0,
			Now:            now,
		}, r.window)
		if !due {
			continue
		}

		msg := Message{UserID: row.UserID, Name: row.Name, Email: row.Email, Title: reminderTitle, Body: reminderBody}
		if row.Name != "" {
			msg.Body = "Hey " + row.Name + "! " + reminderBody
		}
		if err := r.notifier.Notify(ctx, msg); err != nil {
			rep.Failures++
			r.log.Warn("reminder delivery failed", zap.Uint("user_id", row.UserID), zap.Error(err))
			continue
		}
		sentAt := now.UTC()
		if err := r.db.WithContext(ctx).Model(&models.NotificationSetting{}).
			Where("id = ?", row.ID).
			Update("last_notified_at", sentAt).Error; err != nil {
			return rep, err
		}
		rep.NotificationsSent++
	}
	return rep, nil
}

// Start runs the reminder every interval until ctx is cancelled.
func (r *Reminder) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rep, err := r.Run(ctx)
				if err != nil {
					r.log.Error("reminder pass failed", zap.Error(err))
					continue
				}
				if rep.NotificationsSent > 0 || rep.Failures > 0 {
					r.log.Info("reminder pass", zap.Int("sent", rep.NotificationsSent), zap.Int("checked", rep.UsersChecked), zap.Int("failed", rep.Failures))
				}
			}
		}
	}()
}
