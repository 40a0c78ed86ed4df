package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"gorm.io/gorm"

	"github.com/cppla/bravesteps/models"
)

// ExportUser is the client header of an export.
type ExportUser struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	CurrentWeek   int    `json:"currentWeek"`
	CurrentLevel  int    `json:"currentLevel"`
	TotalXP       int    `json:"totalXp"`
	CurrentStreak int    `json:"currentStreak"`
	LongestStreak int    `json:"longestStreak"`
}

// ExportRow is one completed task, flattened for spreadsheets.
type ExportRow struct {
	Date             string `json:"date"`
	Week             int    `json:"week"`
	Task             string `json:"task"`
	AnxietyBefore    int    `json:"anxietyBefore"`
	AnxietyDuring    int    `json:"anxietyDuring"`
	AnxietyReduction int    `json:"anxietyReduction"`
	UsedMedication   bool   `json:"usedMedication"`
	WinNote          string `json:"winNote"`
	XPEarned         int    `json:"xpEarned"`
}

type Export struct {
	User                 ExportUser  `json:"user"`
	Entries              []ExportRow `json:"entries"`
	AchievementsUnlocked int64       `json:"achievementsUnlocked"`
	TotalEntries         int         `json:"totalEntries"`
}

var exportHeader = []string{"date", "week", "task", "anxietyBefore", "anxietyDuring", "anxietyReduction", "usedMedication", "winNote", "xpEarned"}

// ClientExport collects every entry of a user, oldest first. A missing user is gorm.ErrRecordNotFound.
func ClientExport(ctx context.Context, db *gorm.DB, userID uint) (Export, error) {
	db = db.WithContext(ctx)
	var u models.User
	if err := db.First(&u, userID).Error; err != nil {
		return Export{}, err
	}
	var entries []models.Entry
	if err := db.Preload("Task").Where("user_id = ?", userID).Order("completion_day ASC, id ASC").Find(&entries).Error; err != nil {
		return Export{}, fmt.Errorf("list entries: %w", err)
	}
	out := Export{
		User: ExportUser{
			ID:            u.ID,
			Name:          u.Name,
			CurrentWeek:   u.CurrentWeek,
			CurrentLevel:  u.CurrentLevel,
			TotalXP:       u.TotalXP,
			CurrentStreak: u.CurrentStreak,
			LongestStreak: u.LongestStreak,
		},
		Entries:      make([]ExportRow, 0, len(entries)),
		TotalEntries: len(entries),
	}
	if err := db.Model(&models.UserAchievement{}).Where("user_id = ?", userID).Count(&out.AchievementsUnlocked).Error; err != nil {
		return Export{}, fmt.Errorf("count achievements: %w", err)
	}
	for _, e := range entries {
		row := ExportRow{
			Date:             e.CompletionDay,
			AnxietyBefore:    e.AnxietyBefore,
			AnxietyDuring:    e.AnxietyDuring,
			AnxietyReduction: e.AnxietyReduction(),
			UsedMedication:   e.UsedMedication,
			XPEarned:         e.XPEarned,
		}
		if e.Task != nil {
			row.Week = e.Task.WeekNumber
			row.Task = e.Task.TaskName
		}
		if e.WinNote != nil {
			row.WinNote = *e.WinNote
		}
		out.Entries = append(out.Entries, row)
	}
	return out, nil
}

// WriteCSV writes the entries as CSV with a header row.
func WriteCSV(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		med := "No"
		if r.UsedMedication {
			med = "Yes"
		}
		rec := []string{
			r.Date,
			strconv.Itoa(r.Week),
			r.Task,
			strconv.Itoa(r.AnxietyBefore),
			strconv.Itoa(r.AnxietyDuring),
			strconv.Itoa(r.AnxietyReduction),
			med,
			r.WinNote,
			strconv.Itoa(r.XPEarned),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
