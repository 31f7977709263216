package attendance

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"conductpoints/internal/auth"
	"conductpoints/internal/metrics"
	"conductpoints/internal/model"
	"conductpoints/internal/queue"
)

// ActivityStore reads and rotates activities.
type ActivityStore interface {
	GetActivity(ctx context.Context, id string) (*model.Activity, error)
	SetActivityToken(ctx context.Context, id, token string) error
}

// StudentStore resolves the student profile of a user account.
type StudentStore interface {
	GetStudentProfile(ctx context.Context, userID string) (*model.Student, error)
}

// RegistrationStore reads and advances registrations.
type RegistrationStore interface {
	GetRegistration(ctx context.Context, studentID, activityID string) (*model.Registration, error)
	SetRegistrationStatus(ctx context.Context, id string, status model.RegistrationStatus) error
}

// AttendanceStore persists attendance facts. CreateAttendanceIfAbsent must
// return the existing row and ErrDuplicateAttendance when the pair exists.
type AttendanceStore interface {
	GetAttendance(ctx context.Context, studentID, activityID string) (*model.Attendance, error)
	GetAttendanceByID(ctx context.Context, id string) (*model.Attendance, error)
	CreateAttendanceIfAbsent(ctx context.Context, att model.Attendance) (model.Attendance, error)
	ListAttendance(ctx context.Context, studentID string, limit int) ([]HistoryEntry, error)
}

// Store is everything the service needs from persistence.
type Store interface {
	ActivityStore
	StudentStore
	RegistrationStore
	AttendanceStore
}

// Publisher receives attendance.recorded events.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// ScanRequest is one submitted QR scan.
type ScanRequest struct {
	Payload  string
	Claimant auth.Claimant
	ClientIP string
}

// ScanResult describes a recorded attendance.
type ScanResult struct {
	ID             string    `json:"id"`
	ActivityID     string    `json:"activity_id"`
	ActivityName   string    `json:"activity_name"`
	PointsAwarded  float64   `json:"points_awarded"`
	SessionName    string    `json:"session_name"`
	Location       string    `json:"location"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	AttendanceTime time.Time `json:"attendance_time"`
}

// HistoryEntry is an attendance row joined with its activity.
type HistoryEntry struct {
	AttendanceID string    `json:"id"`
	ActivityID   string    `json:"activity_id"`
	ActivityName string    `json:"activity_name"`
	Category     string    `json:"type"`
	Points       float64   `json:"points"`
	Method       string    `json:"method"`
	When         time.Time `json:"attendance_time"`
}

// Service validates QR scans and records attendance.
type Service struct {
	store          Store
	publisher      Publisher
	publishTimeout time.Duration
	loc            *time.Location
	now            func() time.Time
	log            logrus.FieldLogger
}

// defaultPublishTimeout bounds a queue publish after the attendance row is
// already written.
const defaultPublishTimeout = 3 * time.Second

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the calendar used for the end-of-day admission deadline.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithPublisher emits an attendance.recorded message after each recorded scan.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates a service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		publishTimeout: defaultPublishTimeout,
		loc:            time.Local,
		now:            time.Now,
		log:            logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AdmissionDeadline is the last instant a scan is accepted: 23:59:59.999 of
// the calendar day the activity ends, in loc.
func AdmissionDeadline(end time.Time, loc *time.Location) time.Time {
	e := end.In(loc)
	return time.Date(e.Year(), e.Month(), e.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
}

// RecordAttendance validates one scan and, if admitted, records it.
func (s *Service) RecordAttendance(ctx context.Context, req ScanRequest) (ScanResult, error) {
	payload, ok := DecodePayload(req.Payload)
	if !ok {
		return ScanResult{}, newError(KindMalformedInput, "Mã QR không hợp lệ")
	}
	log := s.log.WithFields(logrus.Fields{"activity_id": payload.ActivityID, "user_id": req.Claimant.UserID})

	activity, err := s.store.GetActivity(ctx, payload.ActivityID)
	if err != nil {
		return ScanResult{}, unexpected(err)
	}
	if activity == nil {
		return ScanResult{}, newError(KindNotFound, "Không tìm thấy hoạt động")
	}

	now := s.now()
	if now.After(AdmissionDeadline(activity.EndsAt, s.loc)) {
		return ScanResult{}, newError(KindExpired, "Điểm danh đã hết hạn")
	}
	if activity.Token != "" && !tokensEqual(payload.Token, activity.Token) {
		return ScanResult{}, newError(KindInvalidToken, "Mã QR đã hết hạn hoặc không hợp lệ")
	}
	if !req.Claimant.Role.CanScan() {
		return ScanResult{}, newError(KindForbidden, "Chỉ sinh viên mới được điểm danh bằng QR")
	}

	student, err := s.store.GetStudentProfile(ctx, req.Claimant.UserID)
	if err != nil {
		return ScanResult{}, unexpected(err)
	}
	if student == nil {
		return ScanResult{}, newError(KindPreconditionMissing, "Không tìm thấy thông tin sinh viên của bạn")
	}
	log = log.WithField("student_id", student.ID)

	reg, err := s.store.GetRegistration(ctx, student.ID, activity.ID)
	if err != nil {
		return ScanResult{}, unexpected(err)
	}
	if reg == nil {
		return ScanResult{}, newError(KindForbidden, "Bạn chưa đăng ký hoạt động này. Vui lòng đăng ký trước khi điểm danh.")
	}
	if reg.Status == model.RegistrationRejected {
		return ScanResult{}, newError(KindForbidden, "Đăng ký của bạn đã bị từ chối. Không thể điểm danh.")
	}

	// The lookup saves an insert round-trip; the unique constraint behind
	// CreateAttendanceIfAbsent is what settles concurrent scans.
	existing, err := s.store.GetAttendance(ctx, student.ID, activity.ID)
	if err != nil {
		return ScanResult{}, unexpected(err)
	}
	if existing != nil {
		return ScanResult{}, s.duplicate(*existing)
	}

	created, err := s.store.CreateAttendanceIfAbsent(ctx, model.Attendance{
		StudentID:  student.ID,
		ActivityID: activity.ID,
		RecordedBy: req.Claimant.UserID,
		Method:     model.MethodQR,
		When:       now,
		ClientIP:   req.ClientIP,
		Confirmed:  true,
	})
	if errors.Is(err, ErrDuplicateAttendance) {
		return ScanResult{}, s.duplicate(created)
	}
	if err != nil {
		return ScanResult{}, unexpected(err)
	}
	log = log.WithField("attendance_id", created.ID)

	if reg.Status != model.RegistrationParticipated {
		if err := s.store.SetRegistrationStatus(ctx, reg.ID, model.RegistrationParticipated); err != nil {
			log.WithError(err).Warn("attendance recorded but registration status not advanced")
		}
	}
	s.publish(ctx, log, created.ID)

	log.WithField("points", activity.Points).Info("qr attendance recorded")
	return ScanResult{
		ID:             created.ID,
		ActivityID:     activity.ID,
		ActivityName:   activity.Name,
		PointsAwarded:  activity.Points,
		SessionName:    s.sessionLabel(*activity),
		Location:       locationOrDefault(activity.Location),
		StartDate:      activity.StartsAt,
		EndDate:        activity.EndsAt,
		AttendanceTime: created.When,
	}, nil
}

func (s *Service) duplicate(original model.Attendance) *Error {
	msg := "Bạn đã điểm danh hoạt động này trước đó"
	if !original.When.IsZero() {
		msg = fmt.Sprintf("Bạn đã điểm danh trước đó vào lúc %s", original.When.In(s.loc).Format("15:04:05 02/01/2006"))
	}
	return &Error{Kind: KindDuplicate, Message: msg, AttendedAt: original.When}
}

func (s *Service) publish(ctx context.Context, log logrus.FieldLogger, attendanceID string) {
	if s.publisher == nil {
		return
	}
	msg := queue.Message{Type: queue.TypeAttendanceRecorded, Body: []byte(attendanceID)}
	// Detached from the request, bounded by publishTimeout.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, msg); err != nil {
		metrics.QueuePublishFailures.Inc()
		log.WithError(err).Warn("queue publish failed")
	}
}

func tokensEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (s *Service) sessionLabel(a model.Activity) string {
	day := func(t time.Time) string { return t.In(s.loc).Format("02/01") }
	switch {
	case !a.StartsAt.IsZero() && !a.EndsAt.IsZero():
		return day(a.StartsAt) + " - " + day(a.EndsAt)
	case !a.StartsAt.IsZero():
		return "Ngày " + day(a.StartsAt)
	}
	return "Phiên duy nhất"
}

func locationOrDefault(loc string) string {
	if loc == "" {
		return "Chưa xác định"
	}
	return loc
}

// Reconcile re-applies the participated transition for a recorded attendance.
// It covers scans whose best-effort status update was lost and is safe to
// repeat.
func (s *Service) Reconcile(ctx context.Context, attendanceID string) error {
	att, err := s.store.GetAttendanceByID(ctx, attendanceID)
	if err != nil {
		return err
	}
	if att == nil {
		return fmt.Errorf("attendance %s not found", attendanceID)
	}
	reg, err := s.store.GetRegistration(ctx, att.StudentID, att.ActivityID)
	if err != nil {
		return err
	}
	log := s.log.WithFields(logrus.Fields{"attendance_id": att.ID, "student_id": att.StudentID, "activity_id": att.ActivityID})
	if reg == nil {
		log.Warn("attendance without registration")
		return nil
	}
	if !reg.Status.CanTransitionTo(model.RegistrationParticipated) {
		return nil
	}
	if err := s.store.SetRegistrationStatus(ctx, reg.ID, model.RegistrationParticipated); err != nil {
		return err
	}
	log.Info("registration reconciled to participated")
	return nil
}

// RotateToken replaces the activity's QR secret, invalidating every QR image
// issued before it.
func (s *Service) RotateToken(ctx context.Context, claimant auth.Claimant, activityID string) (Payload, error) {
	if !claimant.Role.IsStaff() {
		return Payload{}, newError(KindForbidden, "Bạn không có quyền tạo mã QR cho hoạt động")
	}
	activity, err := s.store.GetActivity(ctx, activityID)
	if err != nil {
		return Payload{}, unexpected(err)
	}
	if activity == nil {
		return Payload{}, newError(KindNotFound, "Không tìm thấy hoạt động")
	}
	token, err := NewToken()
	if err != nil {
		return Payload{}, unexpected(err)
	}
	if err := s.store.SetActivityToken(ctx, activity.ID, token); err != nil {
		return Payload{}, unexpected(err)
	}
	s.log.WithFields(logrus.Fields{"activity_id": activity.ID, "user_id": claimant.UserID}).Info("qr token rotated")
	return Payload{ActivityID: activity.ID, Token: token}, nil
}

// QRPayload returns the payload for the activity's current QR code, issuing
// a token first if the activity has none.
func (s *Service) QRPayload(ctx context.Context, claimant auth.Claimant, activityID string) (Payload, error) {
	if !claimant.Role.IsStaff() {
		return Payload{}, newError(KindForbidden, "Bạn không có quyền xem mã QR của hoạt động")
	}
	activity, err := s.store.GetActivity(ctx, activityID)
	if err != nil {
		return Payload{}, unexpected(err)
	}
	if activity == nil {
		return Payload{}, newError(KindNotFound, "Không tìm thấy hoạt động")
	}
	if activity.Token == "" {
		return s.RotateToken(ctx, claimant, activityID)
	}
	return Payload{ActivityID: activity.ID, Token: activity.Token}, nil
}

// History lists the claimant's attendance, newest first. Accounts without a
// student profile have no history.
func (s *Service) History(ctx context.Context, claimant auth.Claimant, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	student, err := s.store.GetStudentProfile(ctx, claimant.UserID)
	if err != nil {
		return nil, unexpected(err)
	}
	if student == nil {
		return []HistoryEntry{}, nil
	}
	entries, err := s.store.ListAttendance(ctx, student.ID, limit)
	if err != nil {
		return nil, unexpected(err)
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	return entries, nil
}

// NewToken returns a fresh 32 hex character QR secret.
func NewToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
