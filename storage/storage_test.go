package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/progression"
	"github.com/cppla/bravesteps/seed"
	"github.com/cppla/bravesteps/storage"
	"github.com/cppla/bravesteps/storage/storagetest"
	"github.com/cppla/bravesteps/utils"
)

func setup(t *testing.T) (*gorm.DB, *progression.Engine, models.User) {
	t.Helper()
	db := storagetest.Open(t)
	c, err := seed.Default()
	require.NoError(t, err)
	_, err = seed.Apply(db, c)
	require.NoError(t, err)

	u := models.User{Name: "riley"}
	require.NoError(t, db.Create(&u).Error)

	engine := progression.NewEngine(storage.NewProgressionStore(db), storage.NewAchievementCatalog(db, utils.NewCache(nil, nil)))
	return db, engine, u
}

func firstTaskID(t *testing.T, db *gorm.DB) uint {
	var task models.Task
	require.NoError(t, db.Where("week_number = ?", 1).First(&task).Error)
	return task.ID
}

func TestSubmitPersistsCompletion(t *testing.T) {
	db, engine, u := setup(t)
	ctx := context.Background()
	note := "saw a neighbour"
	now := time.Date(2026, time.October, 14, 9, 15, 0, 0, time.UTC)

	r, err := engine.Submit(ctx, progression.Submission{
		UserID: u.ID, TaskID: firstTaskID(t, db), AnxietyBefore: 7, AnxietyDuring: 3, WinNote: &note, Now: now,
	})
	require.NoError(t, err)
	assert.Equal(t, 90, r.XPEarned)
	assert.Len(t, r.NewlyUnlockedAchievementIDs, 2)

	var got models.User
	require.NoError(t, db.First(&got, u.ID).Error)
	assert.Equal(t, 90, got.TotalXP)
	assert.Equal(t, 1, got.CurrentLevel)
	assert.Equal(t, 1, got.CurrentStreak)
	assert.Equal(t, 1, got.LongestStreak)
	require.NotNil(t, got.LastCompletionDay)
	assert.Equal(t, "2026-10-14", *got.LastCompletionDay)

	var entry models.Entry
	require.NoError(t, db.Where("user_id = ?", u.ID).First(&entry).Error)
	assert.Equal(t, "2026-10-14", entry.CompletionDay)
	assert.Equal(t, 9, entry.LocalHour)
	require.NotNil(t, entry.WinNote)
	assert.Equal(t, note, *entry.WinNote)

	var names []string
	db.Model(&models.UserAchievement{}).
		Joins("JOIN achievements ON achievements.id = user_achievements.achievement_id").
		Where("user_achievements.user_id = ?", u.ID).
		Order("achievements.sort_order").
		Pluck("achievements.name", &names)
	assert.Equal(t, []string{"First Step", "Anxiety Crusher"}, names)
}

func TestSubmitDuplicateSameDay(t *testing.T) {
	db, engine, u := setup(t)
	ctx := context.Background()
	s := progression.Submission{UserID: u.ID, TaskID: firstTaskID(t, db), AnxietyBefore: 4, AnxietyDuring: 4, Now: time.Date(2026, time.October, 14, 8, 0, 0, 0, time.UTC)}

	_, err := engine.Submit(ctx, s)
	require.NoError(t, err)
	s.Now = s.Now.Add(12 * time.Hour)
	_, err = engine.Submit(ctx, s)
	assert.ErrorIs(t, err, progression.ErrDuplicateCompletion)

	var n int64
	db.Model(&models.Entry{}).Where("user_id = ?", u.ID).Count(&n)
	assert.EqualValues(t, 1, n)
}

func TestUniqueIndexReportsDuplicate(t *testing.T) {
	db, _, u := setup(t)
	store := storage.NewProgressionStore(db)
	ctx := context.Background()
	d := progression.Date{Year: 2026, Month: time.October, Day: 14}

	e := progression.Entry{UserID: u.ID, TaskID: 1, Day: d, CompletedAt: time.Now(), XPEarned: 50}
	require.NoError(t, store.CreateEntry(ctx, &e))
	assert.NotZero(t, e.ID)

	dup := e
	dup.ID = 0
	assert.ErrorIs(t, store.CreateEntry(ctx, &dup), progression.ErrDuplicateCompletion)
}

func TestUnknownUser(t *testing.T) {
	db, engine, _ := setup(t)
	_, err := engine.Submit(context.Background(), progression.Submission{
		UserID: 999, TaskID: firstTaskID(t, db), AnxietyBefore: 1, AnxietyDuring: 1, Now: time.Now(),
	})
	assert.ErrorIs(t, err, progression.ErrUnknownUser)

	var n int64
	db.Model(&models.Entry{}).Count(&n)
	assert.Zero(t, n, "the entry insert is rolled back")
}

func TestUnlockAchievementsIgnoresExisting(t *testing.T) {
	db, _, u := setup(t)
	store := storage.NewProgressionStore(db)
	ctx := context.Background()
	at := time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.UnlockAchievements(ctx, u.ID, []uint{1, 2}, at))
	require.NoError(t, store.UnlockAchievements(ctx, u.ID, []uint{2, 3}, at.Add(time.Hour)))
	require.NoError(t, store.UnlockAchievements(ctx, u.ID, nil, at))

	ids, err := store.UnlockedAchievementIDs(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3}, ids)

	var ua models.UserAchievement
	require.NoError(t, db.Where("user_id = ? AND achievement_id = ?", u.ID, 2).First(&ua).Error)
	assert.True(t, ua.UnlockedAt.Equal(at), "first unlock time is kept")
}

func TestTransactionRollsBackOnError(t *testing.T) {
	db, _, u := setup(t)
	store := storage.NewProgressionStore(db)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Transaction(ctx, func(tx progression.Store) error {
		if err := tx.SaveProgress(ctx, u.ID, progression.Progress{TotalXP: 500, CurrentLevel: 3}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := store.LoadProgress(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, progression.NewProgress(), p)
}

func TestListEntriesNewestFirst(t *testing.T) {
	db, engine, u := setup(t)
	ctx := context.Background()
	start := time.Date(2026, time.October, 1, 18, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := engine.Submit(ctx, progression.Submission{UserID: u.ID, TaskID: firstTaskID(t, db), AnxietyBefore: 5, AnxietyDuring: 4, UsedMedication: true, Now: start.AddDate(0, 0, i)})
		require.NoError(t, err)
	}

	entries, err := storage.NewProgressionStore(db).ListEntries(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "2026-10-03", entries[0].Day.String())
	assert.Equal(t, "2026-10-01", entries[2].Day.String())

	var got models.User
	require.NoError(t, db.First(&got, u.ID).Error)
	assert.Equal(t, 3, got.CurrentStreak)
	assert.Equal(t, 150, got.TotalXP)
}

func TestCatalogOrderAndCache(t *testing.T) {
	db, _, _ := setup(t)
	ctx := context.Background()
	cat := storage.NewAchievementCatalog(db, utils.NewCache(nil, nil))

	defs, err := cat.Definitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 12)
	assert.Equal(t, "First Step", defs[0].Name)
	assert.Equal(t, progression.CriterionComeback, defs[11].Criterion)

	require.NoError(t, db.Where("1 = 1").Delete(&models.Achievement{}).Error)
	cached, err := cat.Definitions(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 12)

	cat.Invalidate(ctx)
	fresh, err := cat.Definitions(ctx)
	require.NoError(t, err)
	assert.Empty(t, fresh)
}
