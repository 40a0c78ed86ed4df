package models

import "time"

// LoginActivity is written on every successful passcode login.
type LoginActivity struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"userId"`
	LoginAt    time.Time `gorm:"not null;index" json:"loginAt"`
	IPAddress  string    `gorm:"size:45" json:"ipAddress"`
	UserAgent  string    `gorm:"size:512" json:"userAgent"`
	DeviceInfo string    `gorm:"size:128" json:"deviceInfo"`
}

// ActivityLog is one client-side interaction event.
type ActivityLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index:idx_activity_user_time,priority:1" json:"userId"`
	ActionType      string    `gorm:"size:32;not null;index" json:"actionType"`
	PagePath        string    `gorm:"size:255" json:"pagePath"`
	SessionID       string    `gorm:"size:64;index" json:"sessionId"`
	SessionDuration *int      `json:"sessionDuration"`
	IPAddress       string    `gorm:"size:45" json:"ipAddress"`
	UserAgent       string    `gorm:"size:512" json:"userAgent"`
	DeviceType      string    `gorm:"size:16" json:"deviceType"`
	Browser         string    `gorm:"size:32" json:"browser"`
	OS              string    `gorm:"size:32" json:"os"`
	Metadata        string    `gorm:"type:text" json:"metadata"`
	CreatedAt       time.Time `gorm:"index:idx_activity_user_time,priority:2" json:"createdAt"`
}

// NotificationSetting is the per-user daily reminder preference.
type NotificationSetting struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"not null;uniqueIndex" json:"userId"`
	Enabled        bool       `gorm:"not null;default:false" json:"enabled"`
	ReminderTime   string     `gorm:"size:5;not null;default:09:00" json:"reminderTime"`
	LastNotifiedAt *time.Time `json:"lastNotifiedAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}
