package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/progression"
	"github.com/cppla/bravesteps/utils"
)

const (
	catalogCacheKey = "catalog:achievements"
	catalogCacheTTL = 10 * time.Minute
)

// AchievementCatalog loads achievement definitions from the achievements table.
type AchievementCatalog struct {
	db    *gorm.DB
	cache *utils.Cache
}

var _ progression.Catalog = (*AchievementCatalog)(nil)

// NewAchievementCatalog builds a catalog; cache may be nil.
func NewAchievementCatalog(db *gorm.DB, cache *utils.Cache) *AchievementCatalog {
	return &AchievementCatalog{db: db, cache: cache}
}

func (c *AchievementCatalog) Definitions(ctx context.Context) ([]progression.AchievementDefinition, error) {
	var defs []progression.AchievementDefinition
	if c.cache != nil && c.cache.GetJSON(ctx, catalogCacheKey, &defs) {
		return defs, nil
	}

	var rows []models.Achievement
	if err := c.db.WithContext(ctx).Order("sort_order, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	defs = make([]progression.AchievementDefinition, 0, len(rows))
	for _, a := range rows {
		defs = append(defs, DefinitionFromModel(a))
	}
	if c.cache != nil {
		c.cache.SetJSON(ctx, catalogCacheKey, defs, catalogCacheTTL)
	}
	return defs, nil
}

// Invalidate drops the cached definitions after the catalog changed.
func (c *AchievementCatalog) Invalidate(ctx context.Context) {
	if c.cache != nil {
		c.cache.InvalidateByPrefix(ctx, catalogCacheKey)
	}
}

func DefinitionFromModel(a models.Achievement) progression.AchievementDefinition {
	return progression.AchievementDefinition{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		BadgeIcon:   a.BadgeIcon,
		Criterion:   progression.Criterion(a.Criterion),
		Threshold:   a.Threshold,
		SortOrder:   a.SortOrder,
	}
}
