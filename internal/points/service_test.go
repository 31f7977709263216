package points

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductpoints/internal/model"
)

type fakeStore struct {
	students map[string]*model.Student
	parts    map[string][]Participation
	class    []Entry
	err      error
}

func (f *fakeStore) GetStudentProfile(_ context.Context, userID string) (*model.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.students[userID], nil
}

func (f *fakeStore) ListParticipations(_ context.Context, studentID string) ([]Participation, error) {
	return f.parts[studentID], nil
}

func (f *fakeStore) ClassTotals(_ context.Context, classID string, _ Window) ([]Entry, error) {
	return f.class, nil
}

func participation(id string, status model.RegistrationStatus, pts float64, category, semester, year string) Participation {
	return Participation{
		Registration: model.Registration{ID: "r-" + id, StudentID: "sv-1", ActivityID: id, Status: status},
		Activity:     model.Activity{ID: id, Name: "Hoạt động " + id, Points: pts, Category: category, Semester: semester, Year: year},
	}
}

func newTestAggregator(store Store) *Aggregator {
	l := logrus.New()
	l.SetOutput(io.Discard)
	a := NewAggregator(store, l)
	a.now = func() time.Time { return time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC) }
	return a
}

func seeded() *fakeStore {
	return &fakeStore{
		students: map[string]*model.Student{
			"u-1": {ID: "sv-1", UserID: "u-1", Code: "2112345", Name: "Nguyễn Văn A", ClassID: "cntt1"},
		},
		parts: map[string][]Participation{
			"sv-1": {
				participation("p1", model.RegistrationParticipated, 5, "Tình nguyện", Semester1, "2026"),
				participation("p2", model.RegistrationParticipated, 3.5, "Học thuật", Semester1, "2026"),
				participation("p3", model.RegistrationParticipated, 0, "", Semester1, "2026"),
				participation("p4", model.RegistrationParticipated, 10, "Tình nguyện", Semester1, "2026"),
				participation("p5", model.RegistrationPending, 20, "Thể thao", Semester1, "2026"),
				participation("p6", model.RegistrationParticipated, 7, "Học thuật", Semester2, "2025"),
			},
		},
	}
}

func TestComputePointsWindow(t *testing.T) {
	agg := newTestAggregator(seeded())

	sum, err := agg.ComputePoints(context.Background(), "u-1", Window{Semester: Semester1, Year: "2026"})
	require.NoError(t, err)
	assert.Equal(t, 18.5, sum.Total)
	assert.Equal(t, 4, sum.ActivitiesCount)
	assert.Equal(t, map[string]float64{"Tình nguyện": 15, "Học thuật": 3.5, OtherCategory: 0}, sum.ByType)

	var byType float64
	for _, v := range sum.ByType {
		byType += v
	}
	assert.Equal(t, sum.Total, byType)

	assert.Equal(t, 18.5, sum.CurrentSemester)
	assert.Equal(t, 18.5, sum.CurrentYear)
	assert.Equal(t, Term{Semester: Semester1, Year: "2026"}, sum.CurrentSemesterInfo)
	assert.Equal(t, Breakdown{TotalActivities: 6, CompletedActivities: 5, CurrentSemesterActivities: 4, CurrentYearActivities: 4}, sum.Breakdown)
	assert.Equal(t, Weak, sum.Classification)
	assert.Equal(t, StudentInfo{ID: "sv-1", Name: "Nguyễn Văn A", Code: "2112345"}, sum.StudentInfo)
	require.Len(t, sum.ActivityDetails, 4)
	assert.Equal(t, OtherCategory, sum.ActivityDetails[2].Type)
}

func TestComputePointsNoWindow(t *testing.T) {
	agg := newTestAggregator(seeded())

	sum, err := agg.ComputePoints(context.Background(), "u-1", Window{})
	require.NoError(t, err)
	assert.Equal(t, 25.5, sum.Total)
	assert.Equal(t, 5, sum.ActivitiesCount)
	// Current-term subtotals ignore the requested window.
	assert.Equal(t, 18.5, sum.CurrentSemester)
}

func TestComputePointsYearOnly(t *testing.T) {
	agg := newTestAggregator(seeded())

	sum, err := agg.ComputePoints(context.Background(), "u-1", Window{Year: "2025"})
	require.NoError(t, err)
	assert.Equal(t, 7.0, sum.Total)
	assert.Equal(t, 1, sum.ActivitiesCount)
}

func TestComputePointsCountsRecordedAttendance(t *testing.T) {
	store := seeded()
	p := participation("p7", model.RegistrationApproved, 4, "Thể thao", Semester1, "2026")
	p.Attended = true
	store.parts["sv-1"] = append(store.parts["sv-1"], p)
	agg := newTestAggregator(store)

	sum, err := agg.ComputePoints(context.Background(), "u-1", Window{Semester: Semester1, Year: "2026"})
	require.NoError(t, err)
	assert.Equal(t, 22.5, sum.Total)
	assert.Equal(t, 5, sum.ActivitiesCount)
}

func TestComputePointsNonStudent(t *testing.T) {
	agg := newTestAggregator(seeded())

	sum, err := agg.ComputePoints(context.Background(), "admin-1", Window{Semester: Semester1})
	require.NoError(t, err)
	assert.Zero(t, sum.Total)
	assert.Zero(t, sum.ActivitiesCount)
	assert.Empty(t, sum.ByType)
	assert.NotNil(t, sum.ActivityDetails)
	assert.Equal(t, "admin-1", sum.StudentInfo.ID)
}

func TestComputePointsLookupError(t *testing.T) {
	store := seeded()
	store.err = errors.New("connection reset")
	agg := newTestAggregator(store)

	_, err := agg.ComputePoints(context.Background(), "u-1", Window{})
	assert.ErrorContains(t, err, "connection reset")
}

func TestListActivities(t *testing.T) {
	agg := newTestAggregator(seeded())
	ctx := context.Background()

	all, err := agg.ListActivities(ctx, "u-1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, 6, all.Total)
	assert.Equal(t, map[model.RegistrationStatus]int{
		model.RegistrationParticipated: 5,
		model.RegistrationPending:      1,
	}, all.ByStatus)
	assert.Equal(t, "p1", all.Activities[0].ID)

	pending, err := agg.ListActivities(ctx, "u-1", Filter{Status: model.RegistrationPending})
	require.NoError(t, err)
	require.Len(t, pending.Activities, 1)
	assert.Equal(t, "p5", pending.Activities[0].ID)
	assert.Equal(t, all.ByStatus, pending.ByStatus)

	older, err := agg.ListActivities(ctx, "u-1", Filter{Window: Window{Semester: Semester2, Year: "2025"}})
	require.NoError(t, err)
	require.Len(t, older.Activities, 1)
	assert.Equal(t, "Học thuật", older.Activities[0].Type)

	none, err := agg.ListActivities(ctx, "nobody", Filter{})
	require.NoError(t, err)
	assert.Empty(t, none.Activities)
	assert.Zero(t, none.Total)
}

func TestStanding(t *testing.T) {
	store := seeded()
	store.class = []Entry{
		{StudentID: "sv-0", Total: 40, Activities: 3},
		{StudentID: "sv-1", Total: 0}, // stale, replaced by the computed total
		{StudentID: "sv-2", Total: 18.5, Activities: 2},
		{StudentID: "sv-3", Total: 5, Activities: 1},
	}
	agg := newTestAggregator(store)

	st, err := agg.Standing(context.Background(), "u-1", Window{Semester: Semester1, Year: "2026"})
	require.NoError(t, err)
	assert.Equal(t, Standing{StudentID: "sv-1", Total: 18.5, Classification: Weak, Rank: 2, ClassSize: 4}, st)
}

func TestStandingWithoutClass(t *testing.T) {
	store := seeded()
	store.students["u-1"].ClassID = ""
	agg := newTestAggregator(store)

	st, err := agg.Standing(context.Background(), "u-1", Window{})
	require.NoError(t, err)
	assert.Equal(t, 1, st.Rank)
	assert.Equal(t, 1, st.ClassSize)
}

func TestReport(t *testing.T) {
	agg := newTestAggregator(seeded())

	rep, err := agg.Report(context.Background(), "u-1", "2026")
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, "2026", rep.Year)
	require.Len(t, rep.Semesters, 2)

	hk1 := rep.Semesters[0]
	assert.Equal(t, Semester1, hk1.Semester)
	assert.Equal(t, "Học kỳ 1", hk1.Label)
	assert.Equal(t, 18.5, hk1.Total)
	assert.Equal(t, 4, hk1.Activities)
	assert.Equal(t, []CategoryTotal{
		{Name: "Học thuật", Activities: 1, Points: 3.5},
		{Name: OtherCategory, Activities: 1, Points: 0},
		{Name: "Tình nguyện", Activities: 2, Points: 15},
	}, hk1.ByType)

	assert.Zero(t, rep.Semesters[1].Total)

	missing, err := agg.Report(context.Background(), "nobody", "")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStandingTieWithDatabaseTotals(t *testing.T) {
	store := &fakeStore{
		students: map[string]*model.Student{"u-2": {ID: "sv-2", UserID: "u-2", ClassID: "cntt1"}},
		parts: map[string][]Participation{
			"sv-2": {
				participation("x1", model.RegistrationParticipated, 0.1, "", Semester1, "2026"),
				participation("x2", model.RegistrationParticipated, 0.2, "", Semester1, "2026"),
			},
		},
		class: []Entry{
			{StudentID: "sv-1", Total: 0.3, Activities: 2},
			{StudentID: "sv-2", Total: 0.3, Activities: 2},
		},
	}
	agg := newTestAggregator(store)

	st, err := agg.Standing(context.Background(), "u-2", Window{})
	require.NoError(t, err)
	assert.Equal(t, 0.3, st.Total)
	assert.Equal(t, 2, st.Rank, "tie broken by student id")
}
