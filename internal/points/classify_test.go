package points

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		total float64
		want  Classification
	}{
		{0, Weak},
		{39, Weak},
		{39.9, Weak},
		{40, Average},
		{40.1, Average},
		{59.9, Average},
		{60, Good},
		{60.1, Good},
		{79.9, Good},
		{80, Excellent},
		{80.1, Excellent},
		{120, Excellent},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.total), "Classify(%v)", tt.total)
	}
}

func TestClassifyMonotonic(t *testing.T) {
	order := map[Classification]int{Weak: 0, Average: 1, Good: 2, Excellent: 3}
	prev := order[Classify(0)]
	for x := 0.0; x <= 100; x += 0.5 {
		cur := order[Classify(x)]
		assert.GreaterOrEqual(t, cur, prev, "Classify(%v)", x)
		prev = cur
	}
}

func TestCurrentTerm(t *testing.T) {
	tests := []struct {
		now  time.Time
		want Term
	}{
		{time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), Term{Semester2, "2026"}},
		{time.Date(2026, time.June, 30, 23, 0, 0, 0, time.UTC), Term{Semester2, "2026"}},
		{time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC), Term{Semester1, "2026"}},
		{time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC), Term{Semester1, "2026"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CurrentTerm(tt.now), tt.now.String())
	}
}
