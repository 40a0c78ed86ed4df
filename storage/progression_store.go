package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/progression"
)

// ProgressionStore persists engine state in the users, entries and user_achievements tables.
type ProgressionStore struct {
	db *gorm.DB
}

var _ progression.Store = (*ProgressionStore)(nil)

func NewProgressionStore(db *gorm.DB) *ProgressionStore {
	return &ProgressionStore{db: db}
}

func (s *ProgressionStore) Transaction(ctx context.Context, fn func(tx progression.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ProgressionStore{db: tx})
	})
}

func (s *ProgressionStore) HasEntryOn(ctx context.Context, userID uint, day progression.Date) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Entry{}).
		Where("user_id = ? AND completion_day = ?", userID, day.String()).
		Count(&n).Error
	return n > 0, err
}

func (s *ProgressionStore) CreateEntry(ctx context.Context, e *progression.Entry) error {
	row := models.Entry{
		UserID:         e.UserID,
		TaskID:         e.TaskID,
		CompletionDay:  e.Day.String(),
		CompletedAt:    e.CompletedAt.UTC(),
		LocalHour:      e.LocalHour,
		AnxietyBefore:  e.AnxietyBefore,
		AnxietyDuring:  e.AnxietyDuring,
		UsedMedication: e.UsedMedication,
		WinNote:        e.WinNote,
		XPEarned:       e.XPEarned,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if IsDuplicateKey(err) {
			return progression.ErrDuplicateCompletion
		}
		return err
	}
	e.ID = row.ID
	return nil
}

// ListEntries returns the user's entries newest first.
func (s *ProgressionStore) ListEntries(ctx context.Context, userID uint) ([]progression.Entry, error) {
	var rows []models.Entry
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("completed_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]progression.Entry, 0, len(rows))
	for _, r := range rows {
		e, err := EntryFromModel(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// LoadProgress locks the user row for the rest of the transaction.
func (s *ProgressionStore) LoadProgress(ctx context.Context, userID uint) (progression.Progress, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "total_xp", "current_level", "current_streak", "longest_streak", "last_completion_day").
		First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return progression.Progress{}, progression.ErrUnknownUser
	}
	if err != nil {
		return progression.Progress{}, err
	}
	return ProgressFromUser(u)
}

func (s *ProgressionStore) SaveProgress(ctx context.Context, userID uint, p progression.Progress) error {
	var last *string
	if p.LastCompletionDate != nil {
		d := p.LastCompletionDate.String()
		last = &d
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"total_xp":            p.TotalXP,
		"current_level":       p.CurrentLevel,
		"current_streak":      p.CurrentStreak,
		"longest_streak":      p.LongestStreak,
		"last_completion_day": last,
	})
	return res.Error
}

func (s *ProgressionStore) UnlockedAchievementIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.UserAchievement{}).
		Where("user_id = ?", userID).
		Order("achievement_id").
		Pluck("achievement_id", &ids).Error
	return ids, err
}

func (s *ProgressionStore) UnlockAchievements(ctx context.Context, userID uint, ids []uint, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	rows := make([]models.UserAchievement, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, models.UserAchievement{UserID: userID, AchievementID: id, UnlockedAt: at.UTC()})
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

// ProgressFromUser reads the progression columns of a user row.
func ProgressFromUser(u models.User) (progression.Progress, error) {
	p := progression.Progress{
		TotalXP:       u.TotalXP,
		CurrentLevel:  u.CurrentLevel,
		CurrentStreak: u.CurrentStreak,
		LongestStreak: u.LongestStreak,
	}
	if p.CurrentLevel < 1 {
		p.CurrentLevel = 1
	}
	if u.LastCompletionDay != nil && *u.LastCompletionDay != "" {
		d, err := progression.ParseDate(*u.LastCompletionDay)
		if err != nil {
			return p, err
		}
		p.LastCompletionDate = &d
	}
	return p, nil
}

func EntryFromModel(r models.Entry) (progression.Entry, error) {
	day, err := progression.ParseDate(r.CompletionDay)
	if err != nil {
		return progression.Entry{}, err
	}
	return progression.Entry{
		ID:             r.ID,
		UserID:         r.UserID,
		TaskID:         r.TaskID,
		CompletedAt:    r.CompletedAt,
		Day:            day,
		LocalHour:      r.LocalHour,
		AnxietyBefore:  r.AnxietyBefore,
		AnxietyDuring:  r.AnxietyDuring,
		UsedMedication: r.UsedMedication,
		WinNote:        r.WinNote,
		XPEarned:       r.XPEarned,
	}, nil
}

// IsDuplicateKey reports a unique-constraint violation. gorm translates it when the
// dialect supports it; the string checks cover drivers that do not.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
