package attendance

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies why a scan was refused.
type Kind int

const (
	KindUnexpected Kind = iota
	KindMalformedInput
	KindNotFound
	KindExpired
	KindInvalidToken
	KindForbidden
	KindPreconditionMissing
	KindDuplicate
)

var kindNames = map[Kind]string{
	KindUnexpected:          "unexpected",
	KindMalformedInput:      "malformed_input",
	KindNotFound:            "not_found",
	KindExpired:             "expired",
	KindInvalidToken:        "invalid_token",
	KindForbidden:           "forbidden",
	KindPreconditionMissing: "precondition_missing",
	KindDuplicate:           "duplicate",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// HTTPStatus is the response status a caller should use for k.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindMalformedInput, KindExpired, KindInvalidToken, KindPreconditionMissing, KindDuplicate:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// Error is returned by Service for every refused or failed operation.
// Message is safe to show to the end user.
type Error struct {
	Kind    Kind
	Message string
	// AttendedAt is the original attendance time for KindDuplicate.
	AttendedAt time.Time
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind carried by err, or KindUnexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Message: "Lỗi hệ thống, vui lòng thử lại sau", Err: err}
}

// ErrDuplicateAttendance is returned by an AttendanceStore when the
// (student, activity) pair already has an attendance row.
var ErrDuplicateAttendance = errors.New("attendance already recorded")
