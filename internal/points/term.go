package points

import (
	"strconv"
	"time"
)

const (
	Semester1 = "hoc_ky_1"
	Semester2 = "hoc_ky_2"
)

// Term identifies a semester within a year, matching hoat_dong.hoc_ky and
// hoat_dong.nam_hoc verbatim.
type Term struct {
	Semester string `json:"semester"`
	Year     string `json:"year"`
}

// CurrentTerm derives the running semester from the wall clock: January to
// June is semester 2, July to December semester 1. There is no semester
// calendar behind it; replace this function to use one.
func CurrentTerm(now time.Time) Term {
	semester := Semester1
	if now.Month() < time.July {
		semester = Semester2
	}
	return Term{Semester: semester, Year: strconv.Itoa(now.Year())}
}

func semesterLabel(semester string) string {
	switch semester {
	case Semester1:
		return "Học kỳ 1"
	case Semester2:
		return "Học kỳ 2"
	}
	return semester
}
