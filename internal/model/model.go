package model

import "time"

// ActivityStatus is the lifecycle state of an activity (hoat_dong.trang_thai).
type ActivityStatus string

const (
	ActivityPending   ActivityStatus = "cho_duyet"
	ActivityApproved  ActivityStatus = "da_duyet"
	ActivityRejected  ActivityStatus = "tu_choi"
	ActivityCancelled ActivityStatus = "da_huy"
	ActivityEnded     ActivityStatus = "ket_thuc"
)

// RegistrationStatus is the state of a student's registration (dang_ky_hoat_dong.trang_thai_dk).
type RegistrationStatus string

const (
	RegistrationPending      RegistrationStatus = "cho_duyet"
	RegistrationApproved     RegistrationStatus = "da_duyet"
	RegistrationRejected     RegistrationStatus = "tu_choi"
	RegistrationParticipated RegistrationStatus = "da_tham_gia"
)

var registrationTransitions = map[RegistrationStatus][]RegistrationStatus{
	RegistrationPending:  {RegistrationApproved, RegistrationRejected, RegistrationParticipated},
	RegistrationApproved: {RegistrationRejected, RegistrationParticipated},
	RegistrationRejected: {RegistrationApproved},
}

// CanTransitionTo reports whether a registration may move from s to next.
// Participated is terminal and a rejected registration never returns to pending.
func (s RegistrationStatus) CanTransitionTo(next RegistrationStatus) bool {
	for _, allowed := range registrationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known registration status.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationPending, RegistrationApproved, RegistrationRejected, RegistrationParticipated:
		return true
	}
	return false
}

// Activity is a conduct activity students register for and attend.
type Activity struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	Description          string         `json:"description,omitempty"`
	Location             string         `json:"location,omitempty"`
	StartsAt             time.Time      `json:"start_date"`
	EndsAt               time.Time      `json:"end_date"`
	RegistrationDeadline *time.Time     `json:"deadline,omitempty"`
	Points               float64        `json:"points"`
	Capacity             *int           `json:"capacity,omitempty"`
	Status               ActivityStatus `json:"status"`
	Token                string         `json:"-"` // rotating QR secret
	Category             string         `json:"type"`
	Semester             string         `json:"semester"`
	Year                 string         `json:"year"`
}

// Student is the student profile attached to a user account.
type Student struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Code    string `json:"mssv"`
	Name    string `json:"name"`
	ClassID string `json:"class_id,omitempty"`
}

// Registration links a student to an activity. One per (student, activity).
type Registration struct {
	ID              string             `json:"id"`
	StudentID       string             `json:"student_id"`
	ActivityID      string             `json:"activity_id"`
	Status          RegistrationStatus `json:"status"`
	RegisteredAt    time.Time          `json:"registration_date"`
	ApprovedAt      *time.Time         `json:"approval_date,omitempty"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	Note            string             `json:"notes,omitempty"`
}

// Attendance is an immutable attendance fact. One per (student, activity).
type Attendance struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	ActivityID string    `json:"activity_id"`
	RecordedBy string    `json:"recorded_by"`
	Method     string    `json:"method"`
	When       time.Time `json:"attendance_time"`
	ClientIP   string    `json:"client_ip,omitempty"`
	Confirmed  bool      `json:"confirmed"`
}

// MethodQR marks attendance recorded from a QR scan.
const MethodQR = "qr"
