package progression

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	store.SetDefinitions(testCatalog())
	store.PutUser(1, NewProgress())
	return NewEngine(store, store), store
}

func submission(now time.Time) Submission {
	return Submission{UserID: 1, TaskID: 1, AnxietyBefore: 7, AnxietyDuring: 3, Now: now}
}

func TestSubmitNewUser(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	now := time.Date(2026, time.October, 14, 9, 30, 0, 0, time.UTC)

	r, err := engine.Submit(ctx, submission(now))
	require.NoError(t, err)
	assert.Equal(t, 90, r.XPEarned)
	assert.Equal(t, 1, r.NewLevel)
	assert.False(t, r.LeveledUp)
	assert.Equal(t, 1, r.NewStreak)
	assert.Equal(t, 4, r.AnxietyReduction)
	assert.Contains(t, r.NewlyUnlockedAchievementIDs, idFirstStep)

	p, err := store.LoadProgress(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 90, p.TotalXP)
	assert.Equal(t, 1, p.CurrentLevel)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, 1, p.LongestStreak)
	require.NotNil(t, p.LastCompletionDate)
	assert.Equal(t, "2026-10-14", p.LastCompletionDate.String())

	ids, err := store.UnlockedAchievementIDs(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, r.NewlyUnlockedAchievementIDs, ids)
}

func TestSubmitLevelUp(t *testing.T) {
	engine, store := newTestEngine(t)
	store.PutUser(1, Progress{TotalXP: 95, CurrentLevel: 1})

	s := submission(time.Date(2026, time.October, 14, 14, 0, 0, 0, time.UTC))
	s.UsedMedication = true
	r, err := engine.Submit(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 50, r.XPEarned)
	assert.Equal(t, 2, r.NewLevel)
	assert.True(t, r.LeveledUp)

	p, _ := store.LoadProgress(context.Background(), 1)
	assert.Equal(t, 145, p.TotalXP)
	assert.Equal(t, LevelFor(p.TotalXP), p.CurrentLevel)
}

func TestSubmitRejectsSecondCompletionSameDay(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	morning := time.Date(2026, time.October, 14, 8, 0, 0, 0, time.UTC)

	_, err := engine.Submit(ctx, submission(morning))
	require.NoError(t, err)
	before, _ := store.LoadProgress(ctx, 1)

	_, err = engine.Submit(ctx, submission(morning.Add(10*time.Hour)))
	require.ErrorIs(t, err, ErrDuplicateCompletion)

	after, _ := store.LoadProgress(ctx, 1)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, store.EntryCount(1))
}

func TestSubmitStreakAcrossDays(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	start := time.Date(2026, time.October, 1, 19, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		r, err := engine.Submit(ctx, submission(start.AddDate(0, 0, i)))
		require.NoError(t, err)
		assert.Equal(t, i+1, r.NewStreak)
	}
	r, err := engine.Submit(ctx, submission(start.AddDate(0, 0, 5)))
	require.NoError(t, err)
	assert.Equal(t, 1, r.NewStreak)
	assert.Contains(t, r.NewlyUnlockedAchievementIDs, idComeback)
}

func TestSubmitUsesLocationOfNow(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	loc := time.FixedZone("UTC-8", -8*3600)

	// 06:00 UTC is 22:00 the previous evening at UTC-8: no early bonus, previous day.
	first := time.Date(2026, time.October, 14, 6, 0, 0, 0, time.UTC).In(loc)
	r, err := engine.Submit(ctx, submission(first))
	require.NoError(t, err)
	assert.Equal(t, 75, r.XPEarned)

	// 07:00 local on the 14th is a new local day even though fewer than 24h passed.
	_, err = engine.Submit(ctx, submission(time.Date(2026, time.October, 14, 7, 0, 0, 0, loc)))
	require.NoError(t, err)
}

func TestSubmitValidation(t *testing.T) {
	engine, store := newTestEngine(t)
	now := time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

	bad := []Submission{
		{UserID: 1, TaskID: 1, AnxietyBefore: 11, AnxietyDuring: 3, Now: now},
		{UserID: 1, TaskID: 1, AnxietyBefore: 5, AnxietyDuring: -1, Now: now},
		{UserID: 1, AnxietyBefore: 5, AnxietyDuring: 3, Now: now},
		{UserID: 1, TaskID: 1, AnxietyBefore: 5, AnxietyDuring: 3},
	}
	for _, s := range bad {
		_, err := engine.Submit(context.Background(), s)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	}
	assert.Equal(t, 0, store.EntryCount(1))
}

func TestSubmitUnknownUser(t *testing.T) {
	engine, store := newTestEngine(t)
	s := submission(time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC))
	s.UserID = 42

	_, err := engine.Submit(context.Background(), s)
	require.ErrorIs(t, err, ErrUnknownUser)
	var se *StorageError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, 0, store.EntryCount(42), "entry is rolled back with the transaction")
}

type failingStore struct {
	*MemoryStore
	failUnlock bool
}

func (f *failingStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return f.MemoryStore.Transaction(ctx, func(tx Store) error {
		return fn(&failingStore{MemoryStore: tx.(*MemoryStore), failUnlock: f.failUnlock})
	})
}

func (f *failingStore) UnlockAchievements(ctx context.Context, userID uint, ids []uint, at time.Time) error {
	if f.failUnlock {
		return errors.New("disk full")
	}
	return f.MemoryStore.UnlockAchievements(ctx, userID, ids, at)
}

func TestSubmitStorageFailureRollsBack(t *testing.T) {
	mem := NewMemoryStore()
	mem.SetDefinitions(testCatalog())
	mem.PutUser(1, NewProgress())
	engine := NewEngine(&failingStore{MemoryStore: mem, failUnlock: true}, mem)

	_, err := engine.Submit(context.Background(), submission(time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)))
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "unlock achievements", se.Op)

	p, _ := mem.LoadProgress(context.Background(), 1)
	assert.Equal(t, NewProgress(), p)
	assert.Equal(t, 0, mem.EntryCount(1))
}

func TestSubmitConcurrentDuplicatesRecordOnce(t *testing.T) {
	engine, store := newTestEngine(t)
	now := time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, dup int
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Submit(context.Background(), submission(now))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrDuplicateCompletion):
				dup++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 15, dup)
	assert.Equal(t, 1, store.EntryCount(1))
	p, _ := store.LoadProgress(context.Background(), 1)
	assert.Equal(t, 1, p.CurrentStreak)
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := k.Lock(context.Background(), "b")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	again, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)
	again()
	assert.Empty(t, k.locks)
}

func TestReceiptJSONFieldNames(t *testing.T) {
	engine, _ := newTestEngine(t)
	r, err := engine.Submit(context.Background(), submission(time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"xpEarned":90,"newLevel":1,"leveledUp":false,"newStreak":1,"anxietyReduction":4,"newlyUnlockedAchievementIds":[1,5]}`,
		mustJSON(t, r))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
