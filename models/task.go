package models

import "time"

// Task is the exposure exercise assigned for one protocol week.
type Task struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	WeekNumber       int       `gorm:"not null;uniqueIndex" json:"weekNumber"`
	TaskName         string    `gorm:"size:128;not null" json:"taskName"`
	TaskDescription  string    `gorm:"type:text" json:"taskDescription"`
	QuestDescription string    `gorm:"type:text" json:"questDescription"`
	Psychoeducation  string    `gorm:"type:text" json:"psychoeducation"`
	GoalDays         int       `gorm:"not null;default:5" json:"goalDays"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
