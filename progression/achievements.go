package progression

import "sort"

// Criterion names the rule an achievement is unlocked by.
type Criterion string

const (
	CriterionFirstCompletion  Criterion = "first_completion"
	CriterionWeekCompletions  Criterion = "week_completions"
	CriterionPerfectWeek      Criterion = "perfect_week"
	CriterionStreak           Criterion = "streak"
	CriterionAnxietyDrop      Criterion = "anxiety_drop"
	CriterionMedicationFree   Criterion = "medication_free"
	CriterionLevel            Criterion = "level"
	CriterionTotalCompletions Criterion = "total_completions"
	CriterionEarlyCompletions Criterion = "early_completions"
	CriterionAnxietyTrend     Criterion = "anxiety_trend"
	CriterionComeback         Criterion = "comeback"
)

// Known reports whether the evaluator implements c.
func (c Criterion) Known() bool {
	switch c {
	case CriterionFirstCompletion, CriterionWeekCompletions, CriterionPerfectWeek, CriterionStreak,
		CriterionAnxietyDrop, CriterionMedicationFree, CriterionLevel, CriterionTotalCompletions,
		CriterionEarlyCompletions, CriterionAnxietyTrend, CriterionComeback:
		return true
	}
	return false
}

// AchievementDefinition is one catalog row.
type AchievementDefinition struct {
	ID          uint
	Name        string
	Description string
	BadgeIcon   string
	Criterion   Criterion
	Threshold   int
	SortOrder   int
}

// Snapshot is the post-update state achievements are checked against.
// History must include the entry that was just written.
type Snapshot struct {
	Progress Progress
	History  []Entry
	Today    Date
}

// Evaluate returns the ids of definitions whose criterion holds and which are not in
// unlocked, ordered by SortOrder.
func Evaluate(defs []AchievementDefinition, snap Snapshot, unlocked []uint) []uint {
	have := make(map[uint]bool, len(unlocked))
	for _, id := range unlocked {
		have[id] = true
	}

	ordered := make([]AchievementDefinition, len(defs))
	copy(ordered, defs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].SortOrder < ordered[j].SortOrder })

	facts := collect(snap)
	out := []uint{}
	for _, def := range ordered {
		if have[def.ID] {
			continue
		}
		if facts.satisfies(def) {
			out = append(out, def.ID)
			have[def.ID] = true
		}
	}
	return out
}

// facts are the aggregates every criterion is decided from.
type facts struct {
	progress       Progress
	total          int
	medicationFree int
	early          int
	// maxReduction is only meaningful when total > 0
	maxReduction   int
	thisWeekDays   map[Date]bool
	thisWeek       []Entry
	lastWeek       []Entry
	latestGap      int
	hasGap         bool
}

func collect(snap Snapshot) facts {
	f := facts{
		progress:     snap.Progress,
		total:        len(snap.History),
		thisWeekDays: map[Date]bool{},
	}
	prevWeekRef := snap.Today.WeekStart().AddDays(-7)

	for i, e := range snap.History {
		if r := e.AnxietyReduction(); i == 0 || r > f.maxReduction {
			f.maxReduction = r
		}
		if !e.UsedMedication {
			f.medicationFree++
		}
		if isEarly(e.LocalHour) {
			f.early++
		}
		switch {
		case e.Day.InWeekOf(snap.Today):
			f.thisWeekDays[e.Day] = true
			f.thisWeek = append(f.thisWeek, e)
		case e.Day.InWeekOf(prevWeekRef):
			f.lastWeek = append(f.lastWeek, e)
		}
	}

	if len(snap.History) >= 2 {
		days := make([]Date, len(snap.History))
		for i, e := range snap.History {
			days[i] = e.Day
		}
		sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
		f.latestGap = days[0].DaysSince(days[1])
		f.hasGap = true
	}
	return f
}

func (f facts) satisfies(def AchievementDefinition) bool {
	t := def.Threshold
	switch def.Criterion {
	case CriterionFirstCompletion:
		return f.total >= 1
	case CriterionWeekCompletions:
		return len(f.thisWeek) >= t
	case CriterionPerfectWeek:
		return len(f.thisWeekDays) >= 7
	case CriterionStreak:
		return f.progress.CurrentStreak >= t
	case CriterionAnxietyDrop:
		return f.total > 0 && f.maxReduction >= t
	case CriterionMedicationFree:
		return f.medicationFree >= t
	case CriterionLevel:
		return f.progress.CurrentLevel >= t
	case CriterionTotalCompletions:
		return f.total >= t
	case CriterionEarlyCompletions:
		return f.early >= t
	case CriterionAnxietyTrend:
		return trendingDown(f.lastWeek, f.thisWeek, t)
	case CriterionComeback:
		return f.hasGap && f.latestGap >= t
	default:
		return false
	}
}

// trendingDown compares mean anxietyDuring of two weeks without floating point:
// cur/curN < prev/prevN  <=>  cur*prevN < prev*curN.
func trendingDown(prev, cur []Entry, minEntries int) bool {
	if minEntries < 1 {
		minEntries = 1
	}
	if len(prev) < minEntries || len(cur) < minEntries {
		return false
	}
	prevSum, curSum := 0, 0
	for _, e := range prev {
		prevSum += e.AnxietyDuring
	}
	for _, e := range cur {
		curSum += e.AnxietyDuring
	}
	return curSum*len(prev) < prevSum*len(cur)
}
