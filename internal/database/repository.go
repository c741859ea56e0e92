package database

import (
	"context"
	"time"
)

// UserReader provides read-only access to users
type UserReader interface {
	// GetUser returns ErrNotFound if the user does not exist
	GetUser(ctx context.Context, id int64) (*User, error)
	// GetUserByEmail matches case-insensitively; returns ErrNotFound if absent
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// ListUsers lists users ordered by ID. A non-empty query filters by
	// name, ignoring case and diacritics.
	ListUsers(ctx context.Context, query string) ([]User, error)
}

// UserWriter provides write access to users
type UserWriter interface {
	UserReader

	// CreateUser inserts the user and sets its ID and CreatedAt.
	// Returns ErrDuplicateEmail if the email is taken.
	CreateUser(ctx context.Context, user *User) error
	// SetProfileImage records the image shown for the user
	SetProfileImage(ctx context.Context, userID int64, path string) error
}

// EmbeddingReader provides read-only access to face embeddings
type EmbeddingReader interface {
	// FetchAllEmbeddings returns every stored embedding in its raw form
	FetchAllEmbeddings(ctx context.Context) ([]RawEmbedding, error)
	// CountEmbeddings returns the total number of embeddings stored
	CountEmbeddings(ctx context.Context) (int, error)
	// EmbeddingsForUser returns the decoded embeddings of one user
	EmbeddingsForUser(ctx context.Context, userID int64) ([]StoredEmbedding, error)
}

// EmbeddingWriter appends face embeddings
type EmbeddingWriter interface {
	EmbeddingReader

	// SaveEmbedding inserts the embedding and sets its ID and CreatedAt
	SaveEmbedding(ctx context.Context, emb *StoredEmbedding) error
}

// CourseStore manages courses and enrollments
type CourseStore interface {
	// CreateCourse returns ErrDuplicateCourseCode if the code is taken
	CreateCourse(ctx context.Context, course *Course) error
	GetCourse(ctx context.Context, id int64) (*Course, error)
	ListCourses(ctx context.Context) ([]Course, error)
	// Enroll is idempotent
	Enroll(ctx context.Context, studentID, courseID int64) error
	// RosterIDs returns the IDs of students enrolled in a course
	RosterIDs(ctx context.Context, courseID int64) ([]int64, error)
}

// LectureStore manages lectures
type LectureStore interface {
	CreateLecture(ctx context.Context, lecture *Lecture) error
	GetLecture(ctx context.Context, id int64) (*Lecture, error)
	// ListLectures lists all lectures, or those of one course if courseID is set
	ListLectures(ctx context.Context, courseID *int64) ([]Lecture, error)
}

// AttendanceStore records attendance
type AttendanceStore interface {
	// UpsertAttendance is idempotent per (lectureID, studentID): a repeated
	// call updates the status instead of adding a row. Returns the stored
	// marked_at time.
	UpsertAttendance(ctx context.Context, lectureID, studentID int64, status AttendanceStatus) (time.Time, error)
	ListAttendance(ctx context.Context, filter AttendanceFilter) ([]Attendance, error)
	PresentStudents(ctx context.Context, filter PresentFilter) ([]PresentStudent, error)
}
