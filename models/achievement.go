package models

import "time"

// Achievement is a catalog definition. Criterion and Threshold drive the evaluator;
// UnlockCriteria is the human-readable description of the same rule.
type Achievement struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:128;not null;uniqueIndex" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	BadgeIcon      string    `gorm:"size:32" json:"badgeIcon"`
	UnlockCriteria string    `gorm:"size:255" json:"unlockCriteria"`
	Criterion      string    `gorm:"size:32;not null" json:"criterion"`
	Threshold      int       `gorm:"not null;default:1" json:"threshold"`
	SortOrder      int       `gorm:"not null;default:0" json:"sortOrder"`
	CreatedAt      time.Time `json:"createdAt"`
}

// UserAchievement marks an achievement as unlocked. Unlocks are never revoked.
type UserAchievement struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	UserID        uint         `gorm:"not null;uniqueIndex:idx_user_achievement,priority:1" json:"userId"`
	AchievementID uint         `gorm:"not null;uniqueIndex:idx_user_achievement,priority:2" json:"achievementId"`
	UnlockedAt    time.Time    `gorm:"not null" json:"unlockedAt"`
	Achievement   *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
}
