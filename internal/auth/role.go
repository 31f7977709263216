package auth

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Role is the closed set of roles the core understands.
type Role int

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleTeacher
	RoleMonitor
	RoleStudent
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "ADMIN"
	case RoleTeacher:
		return "GIANG_VIEN"
	case RoleMonitor:
		return "LOP_TRUONG"
	case RoleStudent:
		return "SINH_VIEN"
	}
	return "UNKNOWN"
}

// CanScan reports whether the role may record its own attendance.
// Class monitors scan as students.
func (r Role) CanScan() bool {
	return r == RoleStudent || r == RoleMonitor
}

// IsStaff reports whether the role may manage activity QR codes.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleTeacher || r == RoleMonitor
}

var roleLabels = map[string]Role{
	"ADMIN":         RoleAdmin,
	"QUAN TRI VIEN": RoleAdmin,
	"GIANG VIEN":    RoleTeacher,
	"TEACHER":       RoleTeacher,
	"LOP TRUONG":    RoleMonitor,
	"MONITOR":       RoleMonitor,
	"SINH VIEN":     RoleStudent,
	"STUDENT":       RoleStudent,
}

// NormalizeRole maps a raw role label ("admin", "SINH_VIEN", "Lớp trưởng", ...)
// onto a Role.
func NormalizeRole(raw string) Role {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "_", " ")
	key = strings.Join(strings.Fields(foldDiacritics(key)), " ")
	if r, ok := roleLabels[key]; ok {
		return r
	}
	return RoleUnknown
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return strings.NewReplacer("Đ", "D", "đ", "d").Replace(out)
}
