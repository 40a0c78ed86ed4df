package progression

const (
	BaseXP              = 50
	MedicationFreeBonus = 25
	EarlyBonus          = 15
	// EarlyCutoffHour is exclusive: completions at hour < 12 get the early bonus.
	EarlyCutoffHour = 12
)

// ComputeXP returns the XP for one completion. hour is the local hour (0-23) of the completion.
func ComputeXP(usedMedication bool, hour int) int {
	xp := BaseXP
	if !usedMedication {
		xp += MedicationFreeBonus
	}
	if isEarly(hour) {
		xp += EarlyBonus
	}
	return xp
}

func isEarly(hour int) bool {
	return hour < EarlyCutoffHour
}
