package database

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is the role of an enrolled user
type Role string

const (
	RoleStudent Role = "student"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// DayOfWeek is the weekday a lecture takes place on
type DayOfWeek string

const (
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
	Sunday    DayOfWeek = "sunday"
)

// Valid reports whether d is a known weekday
func (d DayOfWeek) Valid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}

// AttendanceStatus is the recorded outcome for a student at a lecture
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
)

// ParseAttendanceStatus converts a status string, defaulting empty to present
func ParseAttendanceStatus(s string) (AttendanceStatus, error) {
	switch AttendanceStatus(s) {
	case "", StatusPresent:
		return StatusPresent, nil
	case StatusAbsent:
		return StatusAbsent, nil
	}
	return "", fmt.Errorf("unknown attendance status %q", s)
}

// Sentinel errors returned by repositories
var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrDuplicateCourseCode = errors.New("course code already exists")
)

// User is an enrolled person
type User struct {
	ID           int64     `json:"user_id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	ProfileImage string    `json:"profile_image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// FullName joins first and last name
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// StoredEmbedding is a face embedding attached to a user.
// Embeddings are appended on enrollment and never modified.
type StoredEmbedding struct {
	ID        int64
	UserID    int64
	Vector    []float32
	ImagePath string
	Model     string
	CreatedAt time.Time
}

// RawEmbedding is an embedding row in its persisted text form, e.g. "[0.1,0.2]"
type RawEmbedding struct {
	ID     int64
	UserID int64
	Raw    []byte
}

// Course is a taught course owned by a doctor
type Course struct {
	ID          int64     `json:"course_id"`
	Code        string    `json:"course_code"`
	Name        string    `json:"course_name"`
	DoctorID    int64     `json:"doctor_id"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Enrollment links a student to a course
type Enrollment struct {
	StudentID int64 `json:"student_id"`
	CourseID  int64 `json:"course_id"`
}

// Lecture is a scheduled session of a course. Times are "HH:MM:SS".
type Lecture struct {
	ID        int64     `json:"lecture_id"`
	CourseID  int64     `json:"course_id"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	DayOfWeek DayOfWeek `json:"day_of_week"`
	Room      *int      `json:"room_num,omitempty"`
}

// Attendance is the per (lecture, student) attendance record
type Attendance struct {
	LectureID int64            `json:"lecture_id"`
	StudentID int64            `json:"student_id"`
	Status    AttendanceStatus `json:"is_present"`
	MarkedAt  time.Time        `json:"marked_at"`
}

// PresentStudent is a student marked present at a lecture
type PresentStudent struct {
	StudentID int64     `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	LectureID int64     `json:"lecture_id"`
	CourseID  int64     `json:"course_id"`
	MarkedAt  time.Time `json:"marked_at"`
}

// AttendanceFilter narrows ListAttendance; nil fields are ignored
type AttendanceFilter struct {
	LectureID *int64
	StudentID *int64
}

// PresentFilter narrows PresentStudents; nil fields are ignored
type PresentFilter struct {
	CourseID *int64
	DoctorID *int64
}

// Empty reports whether no filter field is set
func (f PresentFilter) Empty() bool {
	return f.CourseID == nil && f.DoctorID == nil
}
