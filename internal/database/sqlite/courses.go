package sqlite

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

const courseColumns = `course_id, course_code, course_name, doctor_id, description, created_at`

func scanCourse(row interface{ Scan(...any) error }) (*database.Course, error) {
	var c database.Course
	var created int64
	if err := row.Scan(&c.ID, &c.Code, &c.Name, &c.DoctorID, &c.Description, &created); err != nil {
		return nil, err //nolint:wrapcheck // callers add context
	}
	c.CreatedAt = fromMillis(created)
	return &c, nil
}

// CreateCourse inserts a course
func (s *Store) CreateCourse(ctx context.Context, course *database.Course) error {
	created := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO courses (course_code, course_name, doctor_id, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, course.Code, course.Name, course.DoctorID, course.Description, millis(created))
	if err != nil {
		if isUnique(err) {
			return fmt.Errorf("create course %q: %w", course.Code, database.ErrDuplicateCourseCode)
		}
		if isForeignKey(err) {
			return fmt.Errorf("doctor %d: %w", course.DoctorID, database.ErrNotFound)
		}
		return fmt.Errorf("create course: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	course.ID = id
	course.CreatedAt = fromMillis(millis(created))
	return nil
}

// GetCourse retrieves a course by ID
func (s *Store) GetCourse(ctx context.Context, id int64) (*database.Course, error) {
	c, err := scanCourse(s.db.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE course_id = ?`, id))
	if err != nil {
		return nil, notFound(err, "course", id)
	}
	return c, nil
}

// ListCourses returns all courses ordered by ID
func (s *Store) ListCourses(ctx context.Context) ([]database.Course, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY course_id`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	courses := make([]database.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}
	return courses, nil
}

// Enroll adds a student to a course; enrolling twice is a no-op
func (s *Store) Enroll(ctx context.Context, studentID, courseID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO student_courses (student_id, course_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		studentID, courseID)
	if err != nil {
		if isForeignKey(err) {
			return fmt.Errorf("enroll student %d in course %d: %w", studentID, courseID, database.ErrNotFound)
		}
		return fmt.Errorf("enroll student: %w", err)
	}
	return nil
}

// RosterIDs returns the IDs of students enrolled in a course
func (s *Store) RosterIDs(ctx context.Context, courseID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT student_id FROM student_courses WHERE course_id = ? ORDER BY student_id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan roster: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}
	return ids, nil
}
