package model

// RegisterRequest defines the payload for creating a new user.
// It includes validation tags to ensure data integrity at the entry point.
type RegisterRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	Address     string `json:"address" validate:"max=255"`
	PhoneNumber string `json:"phone_number" validate:"max=20"`
}

// LoginRequest defines the payload for user authentication.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the raw refresh token being exchanged for a new pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// UpdateUserRequest defines the payload for a profile update. All fields are
// optional; a present password is re-hashed before storage.
type UpdateUserRequest struct {
	Name        string `json:"name" validate:"omitempty,min=2,max=255"`
	Password    string `json:"password" validate:"omitempty,min=8"`
	Address     string `json:"address" validate:"max=255"`
	PhoneNumber string `json:"phone_number" validate:"max=20"`
}

// UpdateUserRoleRequest defines the payload for updating a user's role.
// Using a dedicated struct instead of an inline anonymous struct in the handler
// improves code clarity, reusability, and compatibility with tooling like swag.
type UpdateUserRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=admin member"`
}
