package progression

import (
	"context"
	"time"
)

// Progress is the per-user progression row.
type Progress struct {
	TotalXP            int
	CurrentLevel       int
	CurrentStreak      int
	LongestStreak      int
	LastCompletionDate *Date
}

// NewProgress returns the defaults a user starts with.
func NewProgress() Progress {
	return Progress{CurrentLevel: 1}
}

// Entry is one recorded completion. It is immutable once created.
type Entry struct {
	ID             uint
	UserID         uint
	TaskID         uint
	CompletedAt    time.Time
	Day            Date
	LocalHour      int
	AnxietyBefore  int
	AnxietyDuring  int
	UsedMedication bool
	WinNote        *string
	XPEarned       int
}

func (e Entry) AnxietyReduction() int {
	return e.AnxietyBefore - e.AnxietyDuring
}

// Store is the durable state the engine reads and writes. Implementations must give
// read-after-write consistency inside Transaction.
type Store interface {
	// Transaction runs fn against a store bound to one unit of work. A non-nil error
	// from fn discards the writes made through tx.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	HasEntryOn(ctx context.Context, userID uint, day Date) (bool, error)
	// CreateEntry assigns e.ID. It returns ErrDuplicateCompletion when an entry for
	// (e.UserID, e.Day) already exists.
	CreateEntry(ctx context.Context, e *Entry) error
	ListEntries(ctx context.Context, userID uint) ([]Entry, error)

	// LoadProgress returns ErrUnknownUser when the user does not exist.
	LoadProgress(ctx context.Context, userID uint) (Progress, error)
	SaveProgress(ctx context.Context, userID uint, p Progress) error

	UnlockedAchievementIDs(ctx context.Context, userID uint) ([]uint, error)
	// UnlockAchievements ignores ids that are already unlocked.
	UnlockAchievements(ctx context.Context, userID uint, ids []uint, at time.Time) error
}

// Catalog supplies the achievement definitions.
type Catalog interface {
	Definitions(ctx context.Context) ([]AchievementDefinition, error)
}

// Locker serializes submissions for the same key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
