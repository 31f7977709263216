package points

import (
	"math"
	"sort"
)

// Entry is one classmate's total used for ranking.
type Entry struct {
	StudentID  string
	Total      float64
	Activities int
}

// RoundPoints rounds v to the two decimals hoat_dong.diem_rl stores, so
// sums built in Go compare equal to sums built by Postgres.
func RoundPoints(v float64) float64 {
	return math.Round(v*100) / 100
}

// Ranked orders entries by total descending. Equal totals are broken by
// activity count descending, then student id ascending, so every caller sees
// the same order.
func Ranked(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ta, tb := RoundPoints(a.Total), RoundPoints(b.Total); ta != tb {
			return ta > tb
		}
		if a.Activities != b.Activities {
			return a.Activities > b.Activities
		}
		return a.StudentID < b.StudentID
	})
	return out
}

// RankOf returns the 1-based position of studentID in the ranked entries.
func RankOf(entries []Entry, studentID string) (int, bool) {
	for i, e := range Ranked(entries) {
		if e.StudentID == studentID {
			return i + 1, true
		}
	}
	return 0, false
}
