package model

import (
	"fmt"
	"time"
)

// User is a library member. Email is the identity key.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsStaff reports whether the user may see every borrowing and manage the catalog.
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin
}

// Roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// MinPasswordLength is the shortest password accepted on registration.
const MinPasswordLength = 8

// RoleAtLeast checks if role meets or exceeds the minimum required role.
// Unknown roles never pass.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin: 2,
		RoleUser:  1,
	}
	have, ok := levels[role]
	if !ok {
		return false
	}
	need, ok := levels[minimum]
	if !ok {
		return false
	}
	return have >= need
}

// ValidRole reports whether role is a known role.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
