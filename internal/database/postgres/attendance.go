package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceRepository records attendance per (lecture, student)
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// UpsertAttendance inserts the record or updates its status and timestamp
func (r *AttendanceRepository) UpsertAttendance(ctx context.Context, lectureID, studentID int64, status database.AttendanceStatus) (time.Time, error) {
	var markedAt time.Time
	err := r.pool.db.QueryRowContext(ctx, `
		INSERT INTO attendance (lecture_id, student_id, is_present, marked_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (lecture_id, student_id)
		DO UPDATE SET is_present = EXCLUDED.is_present, marked_at = EXCLUDED.marked_at
		RETURNING marked_at
	`, lectureID, studentID, string(status)).Scan(&markedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return time.Time{}, fmt.Errorf("mark lecture %d student %d: %w", lectureID, studentID, database.ErrNotFound)
		}
		return time.Time{}, fmt.Errorf("upsert attendance: %w", err)
	}
	return markedAt.UTC(), nil
}

// ListAttendance returns records ordered by lecture then student
func (r *AttendanceRepository) ListAttendance(ctx context.Context, filter database.AttendanceFilter) ([]database.Attendance, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT lecture_id, student_id, is_present, marked_at
		FROM attendance
		WHERE ($1::bigint IS NULL OR lecture_id = $1)
		  AND ($2::bigint IS NULL OR student_id = $2)
		ORDER BY lecture_id, student_id
	`, filter.LectureID, filter.StudentID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	records := make([]database.Attendance, 0)
	for rows.Next() {
		var a database.Attendance
		var status string
		if err := rows.Scan(&a.LectureID, &a.StudentID, &status, &a.MarkedAt); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		a.Status = database.AttendanceStatus(status)
		records = append(records, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}

// PresentStudents lists students marked present, optionally restricted to a
// course or to the courses of one doctor
func (r *AttendanceRepository) PresentStudents(ctx context.Context, filter database.PresentFilter) ([]database.PresentStudent, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT u.user_id, u.first_name, u.last_name, u.email, a.lecture_id, l.course_id, a.marked_at
		FROM attendance a
		JOIN users u ON u.user_id = a.student_id
		JOIN lectures l ON l.lecture_id = a.lecture_id
		JOIN courses c ON c.course_id = l.course_id
		WHERE a.is_present = 'present'
		  AND ($1::bigint IS NULL OR l.course_id = $1)
		  AND ($2::bigint IS NULL OR c.doctor_id = $2)
		ORDER BY a.lecture_id, u.user_id
	`, filter.CourseID, filter.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("query present students: %w", err)
	}
	defer rows.Close()

	out := make([]database.PresentStudent, 0)
	for rows.Next() {
		var p database.PresentStudent
		u := database.User{}
		if err := rows.Scan(&p.StudentID, &u.FirstName, &u.LastName, &p.Email, &p.LectureID, &p.CourseID, &p.MarkedAt); err != nil {
			return nil, fmt.Errorf("scan present student: %w", err)
		}
		p.Name = u.FullName()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate present students: %w", err)
	}
	return out, nil
}
