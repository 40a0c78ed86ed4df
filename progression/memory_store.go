package progression

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store and Catalog. Transactions are serialized and
// applied to a copy that is swapped in on success.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *memoryData
}

type memoryData struct {
	nextEntryID uint
	progress    map[uint]Progress
	entries     []Entry
	unlocks     map[uint]map[uint]time.Time
	defs        []AchievementDefinition
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memoryData{
		nextEntryID: 1,
		progress:    map[uint]Progress{},
		unlocks:     map[uint]map[uint]time.Time{},
	}}
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		nextEntryID: d.nextEntryID,
		progress:    make(map[uint]Progress, len(d.progress)),
		entries:     append([]Entry(nil), d.entries...),
		unlocks:     make(map[uint]map[uint]time.Time, len(d.unlocks)),
		defs:        d.defs,
	}
	for k, v := range d.progress {
		c.progress[k] = v
	}
	for uid, m := range d.unlocks {
		cm := make(map[uint]time.Time, len(m))
		for id, at := range m {
			cm[id] = at
		}
		c.unlocks[uid] = cm
	}
	return c
}

// PutUser creates or replaces a user's progression row.
func (s *MemoryStore) PutUser(userID uint, p Progress) {
	s.mu.Lock()
	s.data.progress[userID] = p
	s.mu.Unlock()
}

func (s *MemoryStore) SetDefinitions(defs []AchievementDefinition) {
	s.mu.Lock()
	s.data.defs = append([]AchievementDefinition(nil), defs...)
	s.mu.Unlock()
}

func (s *MemoryStore) Definitions(_ context.Context) ([]AchievementDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]AchievementDefinition(nil), s.data.defs...), nil
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := &MemoryStore{data: s.data.clone()}
	s.mu.RUnlock()

	if err := fn(work); err != nil {
		return err
	}
	s.mu.Lock()
	s.data = work.data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) HasEntryOn(_ context.Context, userID uint, day Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.data.entries {
		if e.UserID == userID && e.Day == day {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) CreateEntry(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.data.entries {
		if x.UserID == e.UserID && x.Day == e.Day {
			return ErrDuplicateCompletion
		}
	}
	e.ID = s.data.nextEntryID
	s.data.nextEntryID++
	s.data.entries = append(s.data.entries, *e)
	return nil
}

// ListEntries returns the user's entries, newest first.
func (s *MemoryStore) ListEntries(_ context.Context, userID uint) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.data.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	return out, nil
}

func (s *MemoryStore) LoadProgress(_ context.Context, userID uint) (Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data.progress[userID]
	if !ok {
		return Progress{}, ErrUnknownUser
	}
	return p, nil
}

func (s *MemoryStore) SaveProgress(_ context.Context, userID uint, p Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.progress[userID]; !ok {
		return ErrUnknownUser
	}
	s.data.progress[userID] = p
	return nil
}

func (s *MemoryStore) UnlockedAchievementIDs(_ context.Context, userID uint) ([]uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint, 0, len(s.data.unlocks[userID]))
	for id := range s.data.unlocks[userID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) UnlockAchievements(_ context.Context, userID uint, ids []uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data.unlocks[userID]
	if !ok {
		m = map[uint]time.Time{}
		s.data.unlocks[userID] = m
	}
	for _, id := range ids {
		if _, done := m[id]; !done {
			m[id] = at
		}
	}
	return nil
}

// EntryCount is a test helper.
func (s *MemoryStore) EntryCount(userID uint) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.data.entries {
		if e.UserID == userID {
			n++
		}
	}
	return n
}
