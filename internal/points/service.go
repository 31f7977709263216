package points

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"conductpoints/internal/model"
)

// Store is the read model the aggregator needs.
type Store interface {
	GetStudentProfile(ctx context.Context, userID string) (*model.Student, error)
	// ListParticipations returns every registration of the student, newest
	// registration first.
	ListParticipations(ctx context.Context, studentID string) ([]Participation, error)
	// ClassTotals returns one entry per student of the class, including
	// students with no points.
	ClassTotals(ctx context.Context, classID string, w Window) ([]Entry, error)
}

// Aggregator derives point summaries from registrations. All methods are
// read-only.
type Aggregator struct {
	store Store
	now   func() time.Time
	log   logrus.FieldLogger
}

// NewAggregator creates an aggregator. A nil logger uses the standard logger.
func NewAggregator(store Store, log logrus.FieldLogger) *Aggregator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Aggregator{store: store, now: time.Now, log: log}
}

func (a *Aggregator) student(ctx context.Context, userID string) (*model.Student, error) {
	sv, err := a.store.GetStudentProfile(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "lookup student")
	}
	return sv, nil
}

// ComputePoints sums the points of the student's completed activities in w.
// Accounts without a student profile get an all-zero summary.
func (a *Aggregator) ComputePoints(ctx context.Context, userID string, w Window) (Summary, error) {
	current := CurrentTerm(a.now())
	sv, err := a.student(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	if sv == nil {
		return Summary{
			ByType:              map[string]float64{},
			Classification:      Classify(0),
			CurrentSemesterInfo: current,
			StudentInfo:         StudentInfo{ID: userID},
			ActivityDetails:     []ActivityDetail{},
		}, nil
	}

	all, err := a.store.ListParticipations(ctx, sv.ID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "lookup registrations")
	}

	sum := Summary{
		ByType:              map[string]float64{},
		CurrentSemesterInfo: current,
		StudentInfo:         StudentInfo{ID: sv.ID, Name: sv.Name, Code: sv.Code},
		ActivityDetails:     []ActivityDetail{},
	}
	sum.Breakdown.TotalActivities = len(all)
	for _, p := range all {
		if !p.Completed() {
			continue
		}
		act := p.Activity
		sum.Breakdown.CompletedActivities++
		if act.Year == current.Year {
			sum.CurrentYear += act.Points
			sum.Breakdown.CurrentYearActivities++
			if act.Semester == current.Semester {
				sum.CurrentSemester += act.Points
				sum.Breakdown.CurrentSemesterActivities++
			}
		}
		if !w.matches(act) {
			continue
		}
		sum.Total += act.Points
		sum.ByType[p.category()] += act.Points
		sum.ActivitiesCount++
		sum.ActivityDetails = append(sum.ActivityDetails, ActivityDetail{
			ID:       act.ID,
			Name:     act.Name,
			Type:     p.category(),
			Points:   act.Points,
			Status:   p.Registration.Status,
			Semester: act.Semester,
			Year:     act.Year,
		})
	}
	sum.Total = RoundPoints(sum.Total)
	sum.CurrentSemester = RoundPoints(sum.CurrentSemester)
	sum.CurrentYear = RoundPoints(sum.CurrentYear)
	for k, v := range sum.ByType {
		sum.ByType[k] = RoundPoints(v)
	}
	sum.Classification = Classify(sum.Total)

	a.log.WithFields(logrus.Fields{
		"student_id": sv.ID,
		"total":      sum.Total,
		"activities": sum.ActivitiesCount,
	}).Debug("points computed")
	return sum, nil
}

// ListActivities returns the student's registrations matching f together with
// a status count over all registrations.
func (a *Aggregator) ListActivities(ctx context.Context, userID string, f Filter) (ActivityList, error) {
	sv, err := a.student(ctx, userID)
	if err != nil {
		return ActivityList{}, err
	}
	list := ActivityList{
		Activities:  []ActivityView{},
		ByStatus:    map[model.RegistrationStatus]int{},
		StudentInfo: StudentInfo{ID: userID},
	}
	if sv == nil {
		return list, nil
	}
	list.StudentInfo = StudentInfo{ID: sv.ID, Name: sv.Name, Code: sv.Code}

	all, err := a.store.ListParticipations(ctx, sv.ID)
	if err != nil {
		return ActivityList{}, errors.Wrap(err, "lookup registrations")
	}
	for _, p := range all {
		list.ByStatus[p.Registration.Status]++
		if !f.Window.matches(p.Activity) {
			continue
		}
		if f.Status != "" && p.Registration.Status != f.Status {
			continue
		}
		list.Activities = append(list.Activities, view(p))
	}
	list.Total = len(list.Activities)
	return list, nil
}

func view(p Participation) ActivityView {
	act, reg := p.Activity, p.Registration
	return ActivityView{
		ID:               act.ID,
		Name:             act.Name,
		Description:      act.Description,
		Type:             p.category(),
		Points:           act.Points,
		Location:         act.Location,
		StartDate:        act.StartsAt,
		EndDate:          act.EndsAt,
		Deadline:         act.RegistrationDeadline,
		Semester:         act.Semester,
		Year:             act.Year,
		Status:           reg.Status,
		Attended:         p.Attended,
		RegistrationDate: reg.RegisteredAt,
		ApprovalDate:     reg.ApprovedAt,
		RejectionReason:  reg.RejectionReason,
		Notes:            reg.Note,
	}
}

// Standing ranks the student among classmates for w.
func (a *Aggregator) Standing(ctx context.Context, userID string, w Window) (Standing, error) {
	sv, err := a.student(ctx, userID)
	if err != nil {
		return Standing{}, err
	}
	if sv == nil {
		return Standing{Classification: Classify(0)}, nil
	}
	sum, err := a.ComputePoints(ctx, userID, w)
	if err != nil {
		return Standing{}, err
	}
	self := Entry{StudentID: sv.ID, Total: sum.Total, Activities: sum.ActivitiesCount}

	var entries []Entry
	if sv.ClassID != "" {
		entries, err = a.store.ClassTotals(ctx, sv.ClassID, w)
		if err != nil {
			return Standing{}, errors.Wrap(err, "lookup class totals")
		}
	}
	found := false
	for i := range entries {
		entries[i].Total = RoundPoints(entries[i].Total)
		if entries[i].StudentID == sv.ID {
			entries[i] = self
			found = true
		}
	}
	if !found {
		entries = append(entries, self)
	}
	rank, _ := RankOf(entries, sv.ID)
	return Standing{
		StudentID:      sv.ID,
		Total:          sum.Total,
		Classification: Classify(sum.Total),
		Rank:           rank,
		ClassSize:      len(entries),
	}, nil
}

// Report totals both semesters of year. An empty year means the current
// calendar year. It returns nil for accounts without a student profile.
func (a *Aggregator) Report(ctx context.Context, userID, year string) (*Report, error) {
	sv, err := a.student(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sv == nil {
		return nil, nil
	}
	all, err := a.store.ListParticipations(ctx, sv.ID)
	if err != nil {
		return nil, errors.Wrap(err, "lookup registrations")
	}
	filterYear := year
	if year == "" {
		year = CurrentTerm(a.now()).Year
	}

	rep := &Report{StudentInfo: StudentInfo{ID: sv.ID, Name: sv.Name, Code: sv.Code}, Year: year}
	for _, semester := range []string{Semester1, Semester2} {
		w := Window{Semester: semester, Year: filterYear}
		sr := SemesterReport{Semester: semester, Label: semesterLabel(semester), ByType: []CategoryTotal{}}
		byType := map[string]*CategoryTotal{}
		for _, p := range all {
			if !p.Completed() || !w.matches(p.Activity) {
				continue
			}
			name := p.category()
			ct, ok := byType[name]
			if !ok {
				ct = &CategoryTotal{Name: name}
				byType[name] = ct
			}
			ct.Activities++
			ct.Points += p.Activity.Points
			sr.Total += p.Activity.Points
			sr.Activities++
		}
		for _, ct := range byType {
			ct.Points = RoundPoints(ct.Points)
			sr.ByType = append(sr.ByType, *ct)
		}
		sr.Total = RoundPoints(sr.Total)
		sort.Slice(sr.ByType, func(i, j int) bool { return sr.ByType[i].Name < sr.ByType[j].Name })
		rep.Semesters = append(rep.Semesters, sr)
	}
	return rep, nil
}
