// Package notify decides when daily reminders are due and delivers them.
package notify

import (
	"regexp"
	"strconv"
	"time"
)

// DefaultReminderTime applies to users without saved settings.
const DefaultReminderTime = "09:00"

var reminderTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// ValidReminderTime reports whether s is a 24h "HH:MM" time.
func ValidReminderTime(s string) bool {
	return reminderTimePattern.MatchString(s)
}

// minuteOfDay parses a valid "HH:MM"; ok is false otherwise.
func minuteOfDay(s string) (int, bool) {
	m := reminderTimePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return h*60 + min, true
}

// Candidate is the state one reminder decision is made from. Now and LastNotifiedAt
// are compared on Now's calendar day.
type Candidate struct {
	Enabled        bool
	ReminderTime   string
	LastNotifiedAt *time.Time
	HasEntryToday  bool
	Now            time.Time
}

// ShouldRemind is true when reminders are enabled, Now is within window of the reminder
// time, nothing was sent earlier on the same day and no task was completed today.
func ShouldRemind(c Candidate, window time.Duration) bool {
	if !c.Enabled || c.HasEntryToday {
		return false
	}
	target, ok := minuteOfDay(c.ReminderTime)
	if !ok {
		return false
	}
	current := c.Now.Hour()*60 + c.Now.Minute()
	diff := current - target
	if diff < 0 {
		diff = -diff
	}
	if time.Duration(diff)*time.Minute > window {
		return false
	}
	if c.LastNotifiedAt != nil {
		last := c.LastNotifiedAt.In(c.Now.Location())
		if sameDay(last, c.Now) {
			return false
		}
	}
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
