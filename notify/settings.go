package notify

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/bravesteps/models"
)

// ErrInvalidReminderTime rejects anything but "HH:MM" on a 24h clock.
var ErrInvalidReminderTime = errors.New("invalid time format (HH:MM)")

// Settings is what the client sees and edits.
type Settings struct {
	Enabled      bool   `json:"enabled"`
	ReminderTime string `json:"reminderTime"`
}

// SettingsUpdate is a partial update; nil fields keep their value.
type SettingsUpdate struct {
	Enabled      *bool   `json:"enabled"`
	ReminderTime *string `json:"reminderTime"`
}

// LoadSettings returns the saved settings or the defaults when none exist.
func LoadSettings(ctx context.Context, db *gorm.DB, userID uint, defaultTime string) (Settings, error) {
	if defaultTime == "" {
		defaultTime = DefaultReminderTime
	}
	var row models.NotificationSetting
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Settings{Enabled: false, ReminderTime: defaultTime}, nil
	}
	if err != nil {
		return Settings{}, err
	}
	return Settings{Enabled: row.Enabled, ReminderTime: row.ReminderTime}, nil
}

// SaveSettings validates and upserts a partial update, returning the resulting settings.
func SaveSettings(ctx context.Context, db *gorm.DB, userID uint, upd SettingsUpdate, defaultTime string) (Settings, error) {
	if upd.ReminderTime != nil && !ValidReminderTime(*upd.ReminderTime) {
		return Settings{}, ErrInvalidReminderTime
	}
	cur, err := LoadSettings(ctx, db, userID, defaultTime)
	if err != nil {
		return Settings{}, err
	}
	if upd.Enabled != nil {
		cur.Enabled = *upd.Enabled
	}
	if upd.ReminderTime != nil {
		cur.ReminderTime = *upd.ReminderTime
	}

	row := models.NotificationSetting{UserID: userID, Enabled: cur.Enabled, ReminderTime: cur.ReminderTime}
	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "reminder_time", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return Settings{}, fmt.Errorf("save notification settings: %w", err)
	}
	return cur, nil
}
