package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// UserRepository provides PostgreSQL-backed user storage
type UserRepository struct {
	pool *Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `user_id, email, first_name, last_name, role, COALESCE(profile_image, ''), created_at`

func scanUser(row interface{ Scan(...any) error }) (*database.User, error) {
	var u database.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &role, &u.ProfileImage, &u.CreatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers add context
	}
	u.Role = database.Role(role)
	return &u, nil
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, id int64) (*database.User, error) {
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email, ignoring case
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*database.User, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, strings.TrimSpace(email))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %q: %w", email, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// ListUsers lists users ordered by ID. Name filtering happens in Go so that
// diacritics are folded the same way as everywhere else.
func (r *UserRepository) ListUsers(ctx context.Context, query string) ([]database.User, error) {
	rows, err := r.pool.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY user_id`)
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
func (r *UserRepository) CreateUser(ctx context.Context, user *database.User) error {
	role := user.Role
	if role == "" {
		role = database.RoleStudent
	}
	err := r.pool.db.QueryRowContext(ctx, `
		INSERT INTO users (email, first_name, last_name, role, profile_image)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING user_id, created_at
	`, user.Email, user.FirstName, user.LastName, string(role), user.ProfileImage).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if _, dup := uniqueConstraint(err); dup {
			return fmt.Errorf("create user %q: %w", user.Email, database.ErrDuplicateEmail)
		}
		return fmt.Errorf("create user: %w", err)
	}
	user.Role = role
	return nil
}

// SetProfileImage records the profile image path
func (r *UserRepository) SetProfileImage(ctx context.Context, userID int64, path string) error {
	res, err := r.pool.db.ExecContext(ctx, `UPDATE users SET profile_image = $2 WHERE user_id = $1`, userID, path)
	if err != nil {
		return fmt.Errorf("set profile image: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %d: %w", userID, database.ErrNotFound)
	}
	return nil
}
