package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		raw  string
		want Role
	}{
		{"ADMIN", RoleAdmin},
		{"admin", RoleAdmin},
		{"Quản trị viên", RoleAdmin},
		{"QUAN_TRI_VIEN", RoleAdmin},
		{"GIANG_VIEN", RoleTeacher},
		{"Giảng viên", RoleTeacher},
		{"SINH_VIEN", RoleStudent},
		{"sinh viên", RoleStudent},
		{"  Sinh   Viên ", RoleStudent},
		{"LOP_TRUONG", RoleMonitor},
		{"Lớp trưởng", RoleMonitor},
		{"", RoleUnknown},
		{"guest", RoleUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRole(tt.raw))
		})
	}
}

func TestRoleCapabilities(t *testing.T) {
	assert.True(t, RoleStudent.CanScan())
	assert.True(t, RoleMonitor.CanScan())
	assert.False(t, RoleTeacher.CanScan())
	assert.False(t, RoleAdmin.CanScan())
	assert.False(t, RoleUnknown.CanScan())

	assert.True(t, RoleAdmin.IsStaff())
	assert.True(t, RoleMonitor.IsStaff())
	assert.False(t, RoleStudent.IsStaff())
}
