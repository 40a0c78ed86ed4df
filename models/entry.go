package models

import "time"

// Entry records one completed task. At most one entry exists per user per local calendar day.
type Entry struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;uniqueIndex:idx_entries_user_day,priority:1;index" json:"userId"`
	TaskID uint `gorm:"not null;index" json:"taskId"`
	// CompletionDay is the user's local calendar day, formatted 2006-01-02.
	CompletionDay  string    `gorm:"size:10;not null;uniqueIndex:idx_entries_user_day,priority:2" json:"completionDay"`
	CompletedAt    time.Time `gorm:"not null;index" json:"completedAt"`
	LocalHour      int       `gorm:"not null" json:"localHour"`
	AnxietyBefore  int       `gorm:"not null" json:"anxietyBefore"`
	AnxietyDuring  int       `gorm:"not null" json:"anxietyDuring"`
	UsedMedication bool      `gorm:"not null;default:false" json:"usedMedication"`
	WinNote        *string   `gorm:"type:text" json:"winNote"`
	XPEarned       int       `gorm:"not null" json:"xpEarned"`
	CreatedAt      time.Time `json:"createdAt"`
	Task           *Task     `gorm:"foreignKey:TaskID" json:"task,omitempty"`
}

func (e Entry) AnxietyReduction() int { return e.AnxietyBefore - e.AnxietyDuring }
