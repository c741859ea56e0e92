package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleValid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleStudent, true},
		{RoleDoctor, true},
		{RoleAdmin, true},
		{"professor", false},
		{"Student", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(string(tc.role), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.role.Valid())
		})
	}
}

func TestDayOfWeekValid(t *testing.T) {
	for _, d := range []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday} {
		assert.True(t, d.Valid(), d)
	}
	assert.False(t, DayOfWeek("funday").Valid())
}

func TestParseAttendanceStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    AttendanceStatus
		wantErr bool
	}{
		{"", StatusPresent, false},
		{"present", StatusPresent, false},
		{"absent", StatusAbsent, false},
		{"late", "", true},
	}

	for _, tc := range tests {
		got, err := ParseAttendanceStatus(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestPresentFilterEmpty(t *testing.T) {
	id := int64(3)
	assert.True(t, PresentFilter{}.Empty())
	assert.False(t, PresentFilter{CourseID: &id}.Empty())
	assert.False(t, PresentFilter{DoctorID: &id}.Empty())
}
