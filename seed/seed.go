// Package seed loads the protocol catalog (weekly tasks and achievements) into the database.
package seed

import (
	_ "embed"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/progression"
)

//go:embed catalog.toml
var defaultCatalog []byte

type TaskSeed struct {
	Week            int    `toml:"week"`
	Name            string `toml:"name"`
	Description     string `toml:"description"`
	Quest           string `toml:"quest"`
	GoalDays        int    `toml:"goal_days"`
	Psychoeducation string `toml:"psychoeducation"`
}

type AchievementSeed struct {
	Name           string `toml:"name"`
	Description    string `toml:"description"`
	Badge          string `toml:"badge"`
	UnlockCriteria string `toml:"unlock_criteria"`
	Criterion      string `toml:"criterion"`
	Threshold      int    `toml:"threshold"`
	SortOrder      int    `toml:"sort_order"`
}

type Catalog struct {
	Tasks        []TaskSeed        `toml:"tasks"`
	Achievements []AchievementSeed `toml:"achievements"`
}

// Default returns the embedded catalog.
func Default() (Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse decodes and validates a TOML catalog.
func Parse(b []byte) (Catalog, error) {
	var c Catalog
	if err := toml.Unmarshal(b, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	weeks := map[int]bool{}
	for _, t := range c.Tasks {
		if t.Week < 1 || t.Name == "" {
			return Catalog{}, fmt.Errorf("task %q: week and name are required", t.Name)
		}
		if weeks[t.Week] {
			return Catalog{}, fmt.Errorf("week %d defined twice", t.Week)
		}
		weeks[t.Week] = true
	}
	names := map[string]bool{}
	for _, a := range c.Achievements {
		if a.Name == "" {
			return Catalog{}, fmt.Errorf("achievement without name")
		}
		if names[a.Name] {
			return Catalog{}, fmt.Errorf("achievement %q defined twice", a.Name)
		}
		names[a.Name] = true
		if !progression.Criterion(a.Criterion).Known() {
			return Catalog{}, fmt.Errorf("achievement %q: unknown criterion %q", a.Name, a.Criterion)
		}
	}
	return c, nil
}

// Result counts rows written by Apply.
type Result struct {
	Tasks        int
	Achievements int
}

// Apply upserts the catalog. Tasks match on week number, achievements on name,
// so existing ids (and therefore unlocks) survive a re-seed.
func Apply(db *gorm.DB, c Catalog) (Result, error) {
	var res Result
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, t := range c.Tasks {
			row := models.Task{
				WeekNumber:       t.Week,
				TaskName:         t.Name,
				TaskDescription:  t.Description,
				QuestDescription: t.Quest,
				Psychoeducation:  t.Psychoeducation,
				GoalDays:         t.GoalDays,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "week_number"}},
				DoUpdates: clause.AssignmentColumns([]string{"task_name", "task_description", "quest_description", "psychoeducation", "goal_days", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return fmt.Errorf("upsert week %d: %w", t.Week, err)
			}
			res.Tasks++
		}
		for _, a := range c.Achievements {
			row := models.Achievement{
				Name:           a.Name,
				Description:    a.Description,
				BadgeIcon:      a.Badge,
				UnlockCriteria: a.UnlockCriteria,
				Criterion:      a.Criterion,
				Threshold:      a.Threshold,
				SortOrder:      a.SortOrder,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"description", "badge_icon", "unlock_criteria", "criterion", "threshold", "sort_order"}),
			}).Create(&row).Error; err != nil {
				return fmt.Errorf("upsert achievement %q: %w", a.Name, err)
			}
			res.Achievements++
		}
		return nil
	})
	return res, err
}
