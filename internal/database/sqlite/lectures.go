package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

const lectureColumns = `lecture_id, course_id, start_time, end_time, day_of_week, room_num`

func scanLecture(row interface{ Scan(...any) error }) (*database.Lecture, error) {
	var l database.Lecture
	var day string
	var room sql.NullInt64
	if err := row.Scan(&l.ID, &l.CourseID, &l.StartTime, &l.EndTime, &day, &room); err != nil {
		return nil, err //nolint:wrapcheck // callers add context
	}
	l.DayOfWeek = database.DayOfWeek(day)
	if room.Valid {
		n := int(room.Int64)
		l.Room = &n
	}
	return &l, nil
}

// CreateLecture inserts a lecture
func (s *Store) CreateLecture(ctx context.Context, lecture *database.Lecture) error {
	var room any
	if lecture.Room != nil {
		room = *lecture.Room
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO lectures (course_id, start_time, end_time, day_of_week, room_num)
		VALUES (?, ?, ?, ?, ?)
	`, lecture.CourseID, lecture.StartTime, lecture.EndTime, string(lecture.DayOfWeek), room)
	if err != nil {
		if isForeignKey(err) {
			return fmt.Errorf("course %d: %w", lecture.CourseID, database.ErrNotFound)
		}
		return fmt.Errorf("create lecture: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create lecture: %w", err)
	}
	lecture.ID = id
	return nil
}

// GetLecture retrieves a lecture by ID
func (s *Store) GetLecture(ctx context.Context, id int64) (*database.Lecture, error) {
	l, err := scanLecture(s.db.QueryRowContext(ctx, `SELECT `+lectureColumns+` FROM lectures WHERE lecture_id = ?`, id))
	if err != nil {
		return nil, notFound(err, "lecture", id)
	}
	return l, nil
}

// ListLectures returns lectures ordered by ID, optionally for one course
func (s *Store) ListLectures(ctx context.Context, courseID *int64) ([]database.Lecture, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+lectureColumns+` FROM lectures
		WHERE ?1 IS NULL OR course_id = ?1
		ORDER BY lecture_id
	`, nullable(courseID))
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
