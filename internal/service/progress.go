package service

import "math"

// CompletionPercent maps an answered-question count to a 0-100 progress
// value. A question counts as answered when its id is present in the
// answer set at all; empty or zero values still count. A zero total
// yields 0 rather than dividing by zero.
func CompletionPercent(answered, total int) int {
	if total <= 0 {
		return 0
	}
	percent := int(math.Round(float64(answered) * 100 / float64(total)))
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
