package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// User is a client or therapist account. Passcodes are stored as bcrypt hashes only.
// The progression columns are owned by the completion engine and are only written inside its transaction.
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"size:64;not null;uniqueIndex" json:"name"`
	Email        string `gorm:"size:255" json:"email"`
	PasscodeHash string `gorm:"size:255" json:"-"`
	Role         string `gorm:"size:16;not null;default:client" json:"role"`
	CurrentWeek  int    `gorm:"not null;default:1" json:"currentWeek"`
	// TimeZone is an IANA name; empty means the app default.
	TimeZone          string         `gorm:"size:64" json:"timeZone"`
	TotalXP           int            `gorm:"not null;default:0" json:"totalXp"`
	CurrentLevel      int            `gorm:"not null;default:1" json:"currentLevel"`
	CurrentStreak     int            `gorm:"not null;default:0" json:"currentStreak"`
	LongestStreak     int            `gorm:"not null;default:0" json:"longestStreak"`
	LastCompletionDay *string        `gorm:"size:10" json:"lastCompletionDate"`
	LastSignedIn      *time.Time     `json:"lastSignedIn"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// BeforeCreate hook ensures defaults the database may not apply (sqlite ignores some).
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleClient
	}
	if u.CurrentWeek == 0 {
		u.CurrentWeek = 1
	}
	if u.CurrentLevel == 0 {
		u.CurrentLevel = 1
	}
	return nil
}

// Location returns the user's zone, or fallback when unset or unknown.
func (u *User) Location(fallback *time.Location) *time.Location {
	if u.TimeZone != "" {
		if loc, err := time.LoadLocation(u.TimeZone); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.Local
	}
	return fallback
}
