package progression

// LevelCost returns the XP needed to advance from level to level+1.
// Level 1 -> 2 costs 100, 2 -> 3 costs 250, and so on.
func LevelCost(level int) int {
	if level < 1 {
		level = 1
	}
	return 100 + (level-1)*150
}

// XPThresholdForLevel returns the cumulative XP required to reach level.
func XPThresholdForLevel(level int) int {
	total := 0
	for l := 1; l < level; l++ {
		total += LevelCost(l)
	}
	return total
}

// LevelFor returns the highest fully paid-for level for totalXP. It is never below 1.
func LevelFor(totalXP int) int {
	level := 1
	remaining := totalXP
	for remaining >= LevelCost(level) {
		remaining -= LevelCost(level)
		level++
	}
	return level
}

// LevelProgress describes where a total XP value sits on the level curve.
type LevelProgress struct {
	Level          int `json:"level"`
	XPIntoLevel    int `json:"xpIntoLevel"`
	XPForNextLevel int `json:"xpForNextLevel"`
	XPToNextLevel  int `json:"xpToNextLevel"`
}

func ProgressFor(totalXP int) LevelProgress {
	if totalXP < 0 {
		totalXP = 0
	}
	level := LevelFor(totalXP)
	into := totalXP - XPThresholdForLevel(level)
	cost := LevelCost(level)
	return LevelProgress{
		Level:          level,
		XPIntoLevel:    into,
		XPForNextLevel: cost,
		XPToNextLevel:  cost - into,
	}
}
