package models

import "time"

// Role constants stored on users.role.
const (
	RoleMentee = "mentee"
	RoleMentor = "mentor"
	RoleAdmin  = "admin"
)

type User struct {
	ID            string     `json:"id" db:"id"`
	Email         string     `json:"email" db:"email"`
	FullName      string     `json:"fullName" db:"full_name"`
	Role          string     `json:"role" db:"role"`
	EmailVerified bool       `json:"emailVerified" db:"email_verified"`
	LastLogin     *time.Time `json:"lastLogin,omitempty" db:"last_login"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
}
