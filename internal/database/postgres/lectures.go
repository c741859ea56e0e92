package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// LectureRepository stores scheduled lectures
type LectureRepository struct {
	pool *Pool
}

// NewLectureRepository creates a new lecture repository
func NewLectureRepository(pool *Pool) *LectureRepository {
	return &LectureRepository{pool: pool}
}

const lectureColumns = `lecture_id, course_id, start_time::text, end_time::text, day_of_week, room_num`

func scanLecture(row interface{ Scan(...any) error }) (*database.Lecture, error) {
	var l database.Lecture
	var day string
	var room sql.NullInt32
	if err := row.Scan(&l.ID, &l.CourseID, &l.StartTime, &l.EndTime, &day, &room); err != nil {
		return nil, err //nolint:wrapcheck // callers add context
	}
	l.DayOfWeek = database.DayOfWeek(day)
	if room.Valid {
		n := int(room.Int32)
		l.Room = &n
	}
	return &l, nil
}

// CreateLecture inserts a lecture
func (r *LectureRepository) CreateLecture(ctx context.Context, lecture *database.Lecture) error {
	var room sql.NullInt32
	if lecture.Room != nil {
		room = sql.NullInt32{Int32: int32(*lecture.Room), Valid: true}
	}
	err := r.pool.db.QueryRowContext(ctx, `
		INSERT INTO lectures (course_id, start_time, end_time, day_of_week, room_num)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING lecture_id
	`, lecture.CourseID, lecture.StartTime, lecture.EndTime, string(lecture.DayOfWeek), room).Scan(&lecture.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("course %d: %w", lecture.CourseID, database.ErrNotFound)
		}
		return fmt.Errorf("create lecture: %w", err)
	}
	return nil
}

// GetLecture retrieves a lecture by ID
func (r *LectureRepository) GetLecture(ctx context.Context, id int64) (*database.Lecture, error) {
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+lectureColumns+` FROM lectures WHERE lecture_id = $1`, id)
	l, err := scanLecture(row)
	if err != nil {
		return nil, notFound(err, "lecture", id)
	}
	return l, nil
}

// ListLectures returns lectures ordered by ID, optionally for one course
func (r *LectureRepository) ListLectures(ctx context.Context, courseID *int64) ([]database.Lecture, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT `+lectureColumns+` FROM lectures
		WHERE $1::bigint IS NULL OR course_id = $1
		ORDER BY lecture_id
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list lectures: %w", err)
	}
	defer rows.Close()

	lectures := make([]database.Lecture, 0)
	for rows.Next() {
		l, err := scanLecture(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lecture: %w", err)
		}
		lectures = append(lectures, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lectures: %w", err)
	}
	return lectures, nil
}
