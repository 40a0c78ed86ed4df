package progression

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	MinAnxiety = 0
	MaxAnxiety = 10
)

// Submission is one validated request to record today's task.
// Now carries the location whose calendar day and hour apply to the user.
type Submission struct {
	UserID         uint
	TaskID         uint
	AnxietyBefore  int
	AnxietyDuring  int
	UsedMedication bool
	WinNote        *string
	Now            time.Time
}

// Receipt is what a successful submission returns to the client.
type Receipt struct {
	XPEarned                    int    `json:"xpEarned"`
	NewLevel                    int    `json:"newLevel"`
	LeveledUp                   bool   `json:"leveledUp"`
	NewStreak                   int    `json:"newStreak"`
	AnxietyReduction            int    `json:"anxietyReduction"`
	NewlyUnlockedAchievementIDs []uint `json:"newlyUnlockedAchievementIds"`
}

// Engine turns submissions into progression updates.
type Engine struct {
	store   Store
	catalog Catalog
	locker  Locker
	log     *zap.Logger
}

type Option func(*Engine)

func WithLocker(l Locker) Option {
	return func(e *Engine) { e.locker = l }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine builds an Engine. Without WithLocker an in-process KeyedMutex is used.
func NewEngine(store Store, catalog Catalog, opts ...Option) *Engine {
	e := &Engine{store: store, catalog: catalog, log: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	if e.locker == nil {
		e.locker = NewKeyedMutex()
	}
	return e
}

func validate(s Submission) error {
	if s.UserID == 0 {
		return &ValidationError{Field: "userId", Message: "is required"}
	}
	if s.TaskID == 0 {
		return &ValidationError{Field: "taskId", Message: "is required"}
	}
	if s.AnxietyBefore < MinAnxiety || s.AnxietyBefore > MaxAnxiety {
		return &ValidationError{Field: "anxietyBefore", Message: fmt.Sprintf("must be between %d and %d", MinAnxiety, MaxAnxiety)}
	}
	if s.AnxietyDuring < MinAnxiety || s.AnxietyDuring > MaxAnxiety {
		return &ValidationError{Field: "anxietyDuring", Message: fmt.Sprintf("must be between %d and %d", MinAnxiety, MaxAnxiety)}
	}
	if s.Now.IsZero() {
		return &ValidationError{Field: "now", Message: "is required"}
	}
	return nil
}

func lockKey(userID uint) string {
	return fmt.Sprintf("progression:user:%d", userID)
}

// Submit records a completion and returns its receipt. It fails with
// ErrDuplicateCompletion when the user already completed a task on Now's calendar day.
func (e *Engine) Submit(ctx context.Context, s Submission) (Receipt, error) {
	if err := validate(s); err != nil {
		return Receipt{}, err
	}

	unlock, err := e.locker.Lock(ctx, lockKey(s.UserID))
	if err != nil {
		return Receipt{}, &StorageError{Op: "acquire user lock", Err: err}
	}
	defer unlock()

	defs, err := e.catalog.Definitions(ctx)
	if err != nil {
		return Receipt{}, storageErr("load achievement catalog", err)
	}

	today := DateOf(s.Now)
	var receipt Receipt
	err = e.store.Transaction(ctx, func(tx Store) error {
		exists, err := tx.HasEntryOn(ctx, s.UserID, today)
		if err != nil {
			return storageErr("check existing entry", err)
		}
		if exists {
			return ErrDuplicateCompletion
		}

		xp := ComputeXP(s.UsedMedication, s.Now.Hour())
		entry := Entry{
			UserID:         s.UserID,
			TaskID:         s.TaskID,
			CompletedAt:    s.Now,
			Day:            today,
			LocalHour:      s.Now.Hour(),
			AnxietyBefore:  s.AnxietyBefore,
			AnxietyDuring:  s.AnxietyDuring,
			UsedMedication: s.UsedMedication,
			WinNote:        s.WinNote,
			XPEarned:       xp,
		}
		if err := tx.CreateEntry(ctx, &entry); err != nil {
			return storageErr("create entry", err)
		}

		prev, err := tx.LoadProgress(ctx, s.UserID)
		if err != nil {
			return storageErr("load progress", err)
		}
		next := Progress{TotalXP: prev.TotalXP + xp}
		next.CurrentLevel = LevelFor(next.TotalXP)
		next.CurrentStreak, next.LongestStreak = UpdateStreak(prev.LastCompletionDate, today, prev.CurrentStreak, prev.LongestStreak)
		next.LastCompletionDate = &today
		if err := tx.SaveProgress(ctx, s.UserID, next); err != nil {
			return storageErr("save progress", err)
		}

		history, err := tx.ListEntries(ctx, s.UserID)
		if err != nil {
			return storageErr("list entries", err)
		}
		unlocked, err := tx.UnlockedAchievementIDs(ctx, s.UserID)
		if err != nil {
			return storageErr("list unlocked achievements", err)
		}
		newly := Evaluate(defs, Snapshot{Progress: next, History: history, Today: today}, unlocked)
		if len(newly) > 0 {
			if err := tx.UnlockAchievements(ctx, s.UserID, newly, s.Now); err != nil {
				return storageErr("unlock achievements", err)
			}
		}

		receipt = Receipt{
			XPEarned:                    xp,
			NewLevel:                    next.CurrentLevel,
			LeveledUp:                   next.CurrentLevel > prev.CurrentLevel,
			NewStreak:                   next.CurrentStreak,
			AnxietyReduction:            s.AnxietyBefore - s.AnxietyDuring,
			NewlyUnlockedAchievementIDs: newly,
		}
		return nil
	})
	if err != nil {
		return Receipt{}, storageErr("commit completion", err)
	}

	e.log.Info("completion recorded",
		zap.Uint("user_id", s.UserID),
		zap.Uint("task_id", s.TaskID),
		zap.String("day", today.String()),
		zap.Int("xp", receipt.XPEarned),
		zap.Int("level", receipt.NewLevel),
		zap.Int("streak", receipt.NewStreak),
		zap.Uints("unlocked", receipt.NewlyUnlockedAchievementIDs),
	)
	return receipt, nil
}
