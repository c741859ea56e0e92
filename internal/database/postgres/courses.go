package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// CourseRepository stores courses and student enrollments
type CourseRepository struct {
	pool *Pool
}

// NewCourseRepository creates a new course repository
func NewCourseRepository(pool *Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// CreateCourse inserts a course
func (r *CourseRepository) CreateCourse(ctx context.Context, course *database.Course) error {
	err := r.pool.db.QueryRowContext(ctx, `
		INSERT INTO courses (course_code, course_name, doctor_id, description)
		VALUES ($1, $2, $3, $4)
		RETURNING course_id, created_at
	`, course.Code, course.Name, course.DoctorID, course.Description).Scan(&course.ID, &course.CreatedAt)
	if err != nil {
		if _, dup := uniqueConstraint(err); dup {
			return fmt.Errorf("create course %q: %w", course.Code, database.ErrDuplicateCourseCode)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("doctor %d: %w", course.DoctorID, database.ErrNotFound)
		}
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// GetCourse retrieves a course by ID
func (r *CourseRepository) GetCourse(ctx context.Context, id int64) (*database.Course, error) {
	var c database.Course
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT course_id, course_code, course_name, doctor_id, description, created_at
		FROM courses WHERE course_id = $1
	`, id).Scan(&c.ID, &c.Code, &c.Name, &c.DoctorID, &c.Description, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err, "course", id)
	}
	return &c, nil
}

// ListCourses returns all courses ordered by ID
func (r *CourseRepository) ListCourses(ctx context.Context) ([]database.Course, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT course_id, course_code, course_name, doctor_id, description, created_at
		FROM courses ORDER BY course_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	courses := make([]database.Course, 0)
	for rows.Next() {
		var c database.Course
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.DoctorID, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}
	return courses, nil
}

// Enroll adds a student to a course; enrolling twice is a no-op
func (r *CourseRepository) Enroll(ctx context.Context, studentID, courseID int64) error {
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO student_courses (student_id, course_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, studentID, courseID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("enroll student %d in course %d: %w", studentID, courseID, database.ErrNotFound)
		}
		return fmt.Errorf("enroll student: %w", err)
	}
	return nil
}

// RosterIDs returns the IDs of students enrolled in a course
func (r *CourseRepository) RosterIDs(ctx context.Context, courseID int64) ([]int64, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT student_id FROM student_courses WHERE course_id = $1 ORDER BY student_id`, courseID)
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
