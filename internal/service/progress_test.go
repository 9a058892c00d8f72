package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompletionPercentZeroTotal(t *testing.T) {
	assert.Equal(t, 0, CompletionPercent(0, 0))
	assert.Equal(t, 0, CompletionPercent(7, 0))
	assert.Equal(t, 0, CompletionPercent(3, -1))
}

func TestCompletionPercentRounding(t *testing.T) {
	cases := []struct {
		answered, total, want int
	}{
		{0, 5, 0},
		{1, 5, 20},
		{4, 5, 80},
		{5, 5, 100},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13}, // 12.5 rounds up
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CompletionPercent(tc.answered, tc.total),
			"percent(%d, %d)", tc.answered, tc.total)
	}
}

func TestCompletionPercentClamped(t *testing.T) {
	// Drifted answer sets can exceed the current question count.
	assert.Equal(t, 100, CompletionPercent(7, 5))
	assert.Equal(t, 0, CompletionPercent(-1, 5))
}

func TestCompletionPercentMonotonic(t *testing.T) {
	for total := 1; total <= 20; total++ {
		prev := 0
		for answered := 0; answered <= total; answered++ {
			p := CompletionPercent(answered, total)
			assert.GreaterOrEqual(t, p, prev, "percent(%d, %d)", answered, total)
			assert.LessOrEqual(t, p, 100)
			prev = p
		}
	}
}
