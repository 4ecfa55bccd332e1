package models

import "time"

// UserRole mirrors the code of the user type a user is bound to.
type UserRole string

const (
	RoleSuperAdmin  UserRole = "SUPERADMIN"
	RoleAdmin       UserRole = "ADMIN"
	RoleInstructor  UserRole = "INSTRUCTOR"
	RoleParticipant UserRole = "PARTICIPANT"
)

// UserType is a row of the user_types lookup table.
type UserType struct {
	ID   string   `db:"id" json:"id"`
	Code UserRole `db:"code" json:"code"`
	Name string   `db:"name" json:"name"`
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	UserTypeID   string     `db:"user_type_id" json:"user_type_id"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
