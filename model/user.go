package model

import "time"

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// User is a customer or administrator account. Deletion is soft: the row is
// kept with deleted_at set, and every repository read excludes such rows.
type User struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Password    string     `json:"-"` // bcrypt hash, never serialized
	Address     string     `json:"address,omitempty"`
	PhoneNumber string     `json:"phone_number,omitempty"`
	Role        string     `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"-"`
}
