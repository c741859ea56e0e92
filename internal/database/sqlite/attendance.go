package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// UpsertAttendance inserts the record or updates its status and timestamp
func (s *Store) UpsertAttendance(ctx context.Context, lectureID, studentID int64, status database.AttendanceStatus) (time.Time, error) {
	markedAt := millis(s.now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (lecture_id, student_id, is_present, marked_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (lecture_id, student_id)
		DO UPDATE SET is_present = excluded.is_present, marked_at = excluded.marked_at
	`, lectureID, studentID, string(status), markedAt)
	if err != nil {
		if isForeignKey(err) {
			return time.Time{}, fmt.Errorf("mark lecture %d student %d: %w", lectureID, studentID, database.ErrNotFound)
		}
		return time.Time{}, fmt.Errorf("upsert attendance: %w", err)
	}
	return fromMillis(markedAt), nil
}

// ListAttendance returns records ordered by lecture then student
func (s *Store) ListAttendance(ctx context.Context, filter database.AttendanceFilter) ([]database.Attendance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lecture_id, student_id, is_present, marked_at
		FROM attendance
		WHERE (?1 IS NULL OR lecture_id = ?1)
		  AND (?2 IS NULL OR student_id = ?2)
		ORDER BY lecture_id, student_id
	`, nullable(filter.LectureID), nullable(filter.StudentID))
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	records := make([]database.Attendance, 0)
	for rows.Next() {
		var a database.Attendance
		var status string
		var marked int64
		if err := rows.Scan(&a.LectureID, &a.StudentID, &status, &marked); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		a.Status = database.AttendanceStatus(status)
		a.MarkedAt = fromMillis(marked)
		records = append(records, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}

// PresentStudents lists students marked present, optionally restricted to a
// course or to the courses of one doctor
func (s *Store) PresentStudents(ctx context.Context, filter database.PresentFilter) ([]database.PresentStudent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.user_id, u.first_name, u.last_name, u.email, a.lecture_id, l.course_id, a.marked_at
		FROM attendance a
		JOIN users u ON u.user_id = a.student_id
		JOIN lectures l ON l.lecture_id = a.lecture_id
		JOIN courses c ON c.course_id = l.course_id
		WHERE a.is_present = 'present'
		  AND (?1 IS NULL OR l.course_id = ?1)
		  AND (?2 IS NULL OR c.doctor_id = ?2)
		ORDER BY a.lecture_id, u.user_id
	`, nullable(filter.CourseID), nullable(filter.DoctorID))
	if err != nil {
		return nil, fmt.Errorf("query present students: %w", err)
	}
	defer rows.Close()

	out := make([]database.PresentStudent, 0)
	for rows.Next() {
		var p database.PresentStudent
		var u database.User
		var marked int64
		if err := rows.Scan(&p.StudentID, &u.FirstName, &u.LastName, &p.Email, &p.LectureID, &p.CourseID, &marked); err != nil {
			return nil, fmt.Errorf("scan present student: %w", err)
		}
		p.Name = u.FullName()
		p.MarkedAt = fromMillis(marked)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate present students: %w", err)
	}
	return out, nil
}
