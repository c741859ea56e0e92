package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/database"
)

const userColumns = `user_id, email, first_name, last_name, role, profile_image, created_at`

func scanUser(row interface{ Scan(...any) error }) (*database.User, error) {
	var u database.User
	var role string
	var created int64
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &role, &u.ProfileImage, &created); err != nil {
		return nil, err //nolint:wrapcheck // callers add context
	}
	u.Role = database.Role(role)
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id int64) (*database.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, id))
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email, ignoring case
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*database.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", email, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// ListUsers lists users ordered by ID, filtered by folded name
func (s *Store) ListUsers(ctx context.Context, query string) ([]database.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]database.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if query != "" && !database.NameMatches(u.FullName(), query) {
			continue
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// CreateUser inserts a user
func (s *Store) CreateUser(ctx context.Context, user *database.User) error {
	if user.Role == "" {
		user.Role = database.RoleStudent
	}
	created := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, first_name, last_name, role, profile_image, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.Email, user.FirstName, user.LastName, string(user.Role), user.ProfileImage, millis(created))
	if err != nil {
		if isUnique(err) {
			return fmt.Errorf("create user %q: %w", user.Email, database.ErrDuplicateEmail)
		}
		return fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	user.ID = id
	user.CreatedAt = fromMillis(millis(created))
	return nil
}

// SetProfileImage records the profile image path
func (s *Store) SetProfileImage(ctx context.Context, userID int64, path string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET profile_image = ? WHERE user_id = ?`, path, userID)
	if err != nil {
		return fmt.Errorf("set profile image: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %d: %w", userID, database.ErrNotFound)
	}
	return nil
}
