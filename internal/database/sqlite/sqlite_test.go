package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-attendance/internal/candidates"
	"github.com/kozaktomas/face-attendance/internal/database"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, _, err := Open(context.Background(), filepath.Join(t.TempDir(), "attendance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustUser(t *testing.T, s *Store, email, first, last string, role database.Role) *database.User {
	t.Helper()
	u := &database.User{Email: email, FirstName: first, LastName: last, Role: role}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestOpen_MigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.db")
	s, applied, err := Open(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_initial.sql"}, applied)
	require.NoError(t, s.Close())

	s, applied, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
	assert.Empty(t, applied)
	again, err := s.Migrate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	u := mustUser(t, s, "jan.novak@example.com", "Jan", "Novák", database.RoleStudent)
	assert.NotZero(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	err := s.CreateUser(ctx, &database.User{Email: "JAN.NOVAK@example.com", FirstName: "J", LastName: "N"})
	assert.ErrorIs(t, err, database.ErrDuplicateEmail)

	got, err := s.GetUserByEmail(ctx, "Jan.Novak@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Jan Novák", got.FullName())

	_, err = s.GetUser(ctx, 404)
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, database.ErrNotFound)

	mustUser(t, s, "eva@example.com", "Eva", "Dvořáková", database.RoleDoctor)
	users, err := s.ListUsers(ctx, "dvorakova")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, database.RoleDoctor, users[0].Role)

	all, err := s.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.SetProfileImage(ctx, u.ID, "1/a.jpg"))
	got, _ = s.GetUser(ctx, u.ID)
	assert.Equal(t, "1/a.jpg", got.ProfileImage)
	assert.ErrorIs(t, s.SetProfileImage(ctx, 404, "x"), database.ErrNotFound)
}

func TestEmbeddings_RawRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	u := mustUser(t, s, "ada@example.com", "Ada", "Lovelace", database.RoleStudent)

	vec := []float32{0.5, -0.25, 0.125, 1}
	emb := &database.StoredEmbedding{UserID: u.ID, Vector: vec, Model: "buffalo_sc"}
	require.NoError(t, s.SaveEmbedding(ctx, emb))
	assert.NotZero(t, emb.ID)

	raw, err := s.FetchAllEmbeddings(ctx)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	decoded, err := candidates.Decode(raw[0].Raw)
	require.NoError(t, err)
	assert.Equal(t, []float32(decoded), vec)

	n, err := s.CountEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := s.EmbeddingsForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, vec, stored[0].Vector)
	assert.Equal(t, "buffalo_sc", stored[0].Model)

	err = s.SaveEmbedding(ctx, &database.StoredEmbedding{UserID: 404, Vector: vec})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestCoursesAndAttendance(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	doctor := mustUser(t, s, "house@example.com", "Gregory", "House", database.RoleDoctor)
	other := mustUser(t, s, "wilson@example.com", "James", "Wilson", database.RoleDoctor)
	alice := mustUser(t, s, "alice@example.com", "Alice", "Smith", database.RoleStudent)
	bob := mustUser(t, s, "bob@example.com", "Bob", "Jones", database.RoleStudent)

	maths := &database.Course{Code: "MATH101", Name: "Mathematics", DoctorID: doctor.ID}
	require.NoError(t, s.CreateCourse(ctx, maths))
	bio := &database.Course{Code: "BIO101", Name: "Biology", DoctorID: other.ID, Description: "cells"}
	require.NoError(t, s.CreateCourse(ctx, bio))
	assert.ErrorIs(t, s.CreateCourse(ctx, &database.Course{Code: "MATH101", Name: "x", DoctorID: doctor.ID}), database.ErrDuplicateCourseCode)
	assert.ErrorIs(t, s.CreateCourse(ctx, &database.Course{Code: "X1", Name: "x", DoctorID: 404}), database.ErrNotFound)

	courses, err := s.ListCourses(ctx)
	require.NoError(t, err)
	assert.Len(t, courses, 2)

	require.NoError(t, s.Enroll(ctx, alice.ID, maths.ID))
	require.NoError(t, s.Enroll(ctx, alice.ID, maths.ID))
	assert.ErrorIs(t, s.Enroll(ctx, alice.ID, 404), database.ErrNotFound)
	roster, err := s.RosterIDs(ctx, maths.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{alice.ID}, roster)

	room := 12
	mathLecture := &database.Lecture{CourseID: maths.ID, StartTime: "09:00:00", EndTime: "10:00:00", DayOfWeek: database.Monday, Room: &room}
	require.NoError(t, s.CreateLecture(ctx, mathLecture))
	bioLecture := &database.Lecture{CourseID: bio.ID, StartTime: "11:00:00", EndTime: "12:00:00", DayOfWeek: database.Friday}
	require.NoError(t, s.CreateLecture(ctx, bioLecture))

	got, err := s.GetLecture(ctx, mathLecture.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Room)
	assert.Equal(t, 12, *got.Room)
	got, err = s.GetLecture(ctx, bioLecture.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Room)

	lectures, err := s.ListLectures(ctx, &bio.ID)
	require.NoError(t, err)
	require.Len(t, lectures, 1)
	lectures, err = s.ListLectures(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, lectures, 2)

	markedAt := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)
	s.now = func() time.Time { return markedAt }
	for range 3 {
		got, err := s.UpsertAttendance(ctx, mathLecture.ID, alice.ID, database.StatusPresent)
		require.NoError(t, err)
		assert.Equal(t, markedAt, got)
	}
	records, err := s.ListAttendance(ctx, database.AttendanceFilter{LectureID: &mathLecture.ID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, database.StatusPresent, records[0].Status)
	assert.Equal(t, markedAt, records[0].MarkedAt)

	_, err = s.UpsertAttendance(ctx, bioLecture.ID, bob.ID, database.StatusPresent)
	require.NoError(t, err)
	_, err = s.UpsertAttendance(ctx, bioLecture.ID, alice.ID, database.StatusAbsent)
	require.NoError(t, err)
	_, err = s.UpsertAttendance(ctx, 404, alice.ID, database.StatusPresent)
	assert.ErrorIs(t, err, database.ErrNotFound)

	records, err = s.ListAttendance(ctx, database.AttendanceFilter{StudentID: &alice.ID})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	byCourse, err := s.PresentStudents(ctx, database.PresentFilter{CourseID: &maths.ID})
	require.NoError(t, err)
	require.Len(t, byCourse, 1)
	assert.Equal(t, "Alice Smith", byCourse[0].Name)

	byDoctor, err := s.PresentStudents(ctx, database.PresentFilter{DoctorID: &other.ID})
	require.NoError(t, err)
	require.Len(t, byDoctor, 1)
	assert.Equal(t, bob.ID, byDoctor[0].StudentID)
	assert.Equal(t, bio.ID, byDoctor[0].CourseID)
}
