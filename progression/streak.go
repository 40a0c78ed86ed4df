package progression

// UpdateStreak returns the streak after a completion on today, given the previous
// completion day (nil for a first completion) and the stored streak values.
func UpdateStreak(last *Date, today Date, current, longest int) (newStreak, newLongest int) {
	newStreak = 1
	if last != nil {
		switch today.DaysSince(*last) {
		case 1:
			newStreak = current + 1
		case 0:
			// Same-day completions are rejected before this point; keep the value as is.
			newStreak = current
			if newStreak < 1 {
				newStreak = 1
			}
		}
	}
	newLongest = longest
	if newStreak > newLongest {
		newLongest = newStreak
	}
	return newStreak, newLongest
}
