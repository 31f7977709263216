package attendance

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"conductpoints/internal/model"
	"conductpoints/internal/queue"
)

type fakeStore struct {
	mu         sync.Mutex
	activities map[string]*model.Activity
	students   map[string]*model.Student
	regs       map[string]*model.Registration
	atts       map[string]model.Attendance

	setStatusErr error
	lookupErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		activities: map[string]*model.Activity{},
		students:   map[string]*model.Student{},
		regs:       map[string]*model.Registration{},
		atts:       map[string]model.Attendance{},
	}
}

func pair(studentID, activityID string) string { return studentID + "|" + activityID }

func (f *fakeStore) addActivity(a model.Activity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities[a.ID] = &a
}

func (f *fakeStore) addStudent(s model.Student) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.students[s.UserID] = &s
}

func (f *fakeStore) addRegistration(r model.Registration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[pair(r.StudentID, r.ActivityID)] = &r
}

func (f *fakeStore) registration(studentID, activityID string) model.Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.regs[pair(studentID, activityID)]
}

func (f *fakeStore) attendanceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.atts)
}

func (f *fakeStore) GetActivity(_ context.Context, id string) (*model.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	a, ok := f.activities[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) SetActivityToken(_ context.Context, id, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.activities[id]
	if !ok {
		return errors.New("no activity")
	}
	a.Token = token
	return nil
}

func (f *fakeStore) GetStudentProfile(_ context.Context, userID string) (*model.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.students[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) GetRegistration(_ context.Context, studentID, activityID string) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[pair(studentID, activityID)]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) SetRegistrationStatus(_ context.Context, id string, status model.RegistrationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setStatusErr != nil {
		return f.setStatusErr
	}
	for _, r := range f.regs {
		if r.ID == id {
			r.Status = status
			return nil
		}
	}
	return errors.New("no registration")
}

func (f *fakeStore) GetAttendance(_ context.Context, studentID, activityID string) (*model.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.atts[pair(studentID, activityID)]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (f *fakeStore) GetAttendanceByID(_ context.Context, id string) (*model.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.atts {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

// CreateAttendanceIfAbsent is atomic under the mutex, like the unique index.
func (f *fakeStore) CreateAttendanceIfAbsent(_ context.Context, att model.Attendance) (model.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pair(att.StudentID, att.ActivityID)
	if existing, ok := f.atts[key]; ok {
		return existing, ErrDuplicateAttendance
	}
	att.ID = uuid.NewString()
	f.atts[key] = att
	return att, nil
}

func (f *fakeStore) ListAttendance(_ context.Context, studentID string, limit int) ([]HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []HistoryEntry
	for _, a := range f.atts {
		if a.StudentID != studentID {
			continue
		}
		act := f.activities[a.ActivityID]
		res = append(res, HistoryEntry{
			AttendanceID: a.ID,
			ActivityID:   a.ActivityID,
			ActivityName: act.Name,
			Points:       act.Points,
			Method:       a.Method,
			When:         a.When,
		})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].When.After(res[j].When) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []queue.Message
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg queue.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}
