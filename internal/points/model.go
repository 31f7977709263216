package points

import (
	"time"

	"conductpoints/internal/model"
)

// OtherCategory collects activities without a category.
const OtherCategory = "Khác"

// Window restricts aggregation to a semester and/or year. Empty fields match
// everything.
type Window struct {
	Semester string
	Year     string
}

func (w Window) matches(a model.Activity) bool {
	if w.Semester != "" && a.Semester != w.Semester {
		return false
	}
	if w.Year != "" && a.Year != w.Year {
		return false
	}
	return true
}

// Filter narrows ListActivities.
type Filter struct {
	Window
	Status model.RegistrationStatus
}

// Participation is a registration joined with its activity. Attended is set
// when an attendance row exists for the pair.
type Participation struct {
	Registration model.Registration
	Activity     model.Activity
	Attended     bool
}

// Completed reports whether the participation counts toward points.
func (p Participation) Completed() bool {
	return p.Registration.Status == model.RegistrationParticipated || p.Attended
}

func (p Participation) category() string {
	if p.Activity.Category == "" {
		return OtherCategory
	}
	return p.Activity.Category
}

// StudentInfo identifies whose summary it is.
type StudentInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"mssv,omitempty"`
}

// ActivityDetail is a qualifying activity in a summary.
type ActivityDetail struct {
	ID       string                   `json:"id"`
	Name     string                   `json:"name"`
	Type     string                   `json:"type"`
	Points   float64                  `json:"points"`
	Status   model.RegistrationStatus `json:"status"`
	Semester string                   `json:"semester"`
	Year     string                   `json:"year"`
}

// Breakdown counts registrations at each stage.
type Breakdown struct {
	TotalActivities           int `json:"totalActivities"`
	CompletedActivities       int `json:"completedActivities"`
	CurrentSemesterActivities int `json:"currentSemesterActivities"`
	CurrentYearActivities     int `json:"currentYearActivities"`
}

// Summary is a student's derived point total. It is never stored.
type Summary struct {
	Total               float64            `json:"total"`
	CurrentSemester     float64            `json:"currentSemester"`
	CurrentYear         float64            `json:"currentYear"`
	ByType              map[string]float64 `json:"byType"`
	ActivitiesCount     int                `json:"activitiesCount"`
	Classification      Classification     `json:"classification"`
	CurrentSemesterInfo Term               `json:"currentSemesterInfo"`
	Breakdown           Breakdown          `json:"breakdown"`
	StudentInfo         StudentInfo        `json:"studentInfo"`
	ActivityDetails     []ActivityDetail   `json:"activityDetails"`
}

// ActivityView is one registration in the student's activity list.
type ActivityView struct {
	ID               string                   `json:"id"`
	Name             string                   `json:"name"`
	Description      string                   `json:"description,omitempty"`
	Type             string                   `json:"type"`
	Points           float64                  `json:"points"`
	Location         string                   `json:"location,omitempty"`
	StartDate        time.Time                `json:"startDate"`
	EndDate          time.Time                `json:"endDate"`
	Deadline         *time.Time               `json:"deadline,omitempty"`
	Semester         string                   `json:"semester"`
	Year             string                   `json:"year"`
	Status           model.RegistrationStatus `json:"status"`
	Attended         bool                     `json:"attended"`
	RegistrationDate time.Time                `json:"registrationDate"`
	ApprovalDate     *time.Time               `json:"approvalDate,omitempty"`
	RejectionReason  string                   `json:"rejectionReason,omitempty"`
	Notes            string                   `json:"notes,omitempty"`
}

// ActivityList is the result of ListActivities.
type ActivityList struct {
	Activities  []ActivityView                   `json:"activities"`
	Total       int                              `json:"total"`
	ByStatus    map[model.RegistrationStatus]int `json:"byStatus"`
	StudentInfo StudentInfo                      `json:"studentInfo"`
}

// Standing places a student among classmates.
type Standing struct {
	StudentID      string         `json:"studentId"`
	Total          float64        `json:"total"`
	Classification Classification `json:"classification"`
	Rank           int            `json:"rank"`
	ClassSize      int            `json:"classSize"`
}

// CategoryTotal is one category's contribution within a report semester.
type CategoryTotal struct {
	Name       string  `json:"ten_loai"`
	Activities int     `json:"so_hoat_dong"`
	Points     float64 `json:"tong_diem"`
}

// SemesterReport totals one semester.
type SemesterReport struct {
	Semester   string          `json:"hoc_ky"`
	Label      string          `json:"label"`
	Total      float64         `json:"tong_diem"`
	Activities int             `json:"tong_hoat_dong"`
	ByType     []CategoryTotal `json:"diem_theo_loai"`
}

// Report is a per-semester point report for one year.
type Report struct {
	StudentInfo StudentInfo      `json:"sinh_vien"`
	Year        string           `json:"nam_hoc"`
	Semesters   []SemesterReport `json:"bao_cao"`
}
