package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/knjiznica/internal/model"
)

// ErrEmailTaken is returned when registering an email that already exists.
var ErrEmailTaken = errors.New("email already registered")

const userColumns = `id, email, first_name, last_name, password_hash, role, created_at`

// CreateUser creates a new user. Emails are stored lowercased.
func CreateUser(ctx context.Context, db *sql.DB, email, firstName, lastName, passwordHash, role string) (*model.User, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO users (email, first_name, last_name, password_hash, role) VALUES (?, ?, ?, ?, ?)`,
		strings.ToLower(email), firstName, lastName, passwordHash, role,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns a user by email, compared case-insensitively.
func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by email.
func ListUsers(ctx context.Context, db *sql.DB) ([]model.User, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserProfile updates a user's names.
func UpdateUserProfile(ctx context.Context, db *sql.DB, id int64, firstName, lastName string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET first_name = ?, last_name = ? WHERE id = ?`,
		firstName, lastName, id,
	)
	if err != nil {
		return fmt.Errorf("updating user profile: %w", err)
	}
	return nil
}

// UpdateUserRole changes a user's role.
func UpdateUserRole(ctx context.Context, db *sql.DB, id int64, role string) error {
	_, err := db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return fmt.Errorf("updating user role: %w", err)
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// DeleteUser removes a user together with their borrowings.
func DeleteUser(ctx context.Context, db *sql.DB, id int64) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting user: %w", err)
	}
	return n > 0, nil
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}
