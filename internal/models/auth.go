package models

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID  int64    `json:"id"`
	Name    string   `json:"nombre"`
	Surname string   `json:"apellido"`
	Email   string   `json:"email"`
	Role    UserRole `json:"rol"`
}

// IsAdmin reports whether the caller holds the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and the user profile.
type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"usuario"`
}

// RegisterRequest is the self sign-up payload.
type RegisterRequest struct {
	Name     string `json:"nombre" validate:"required,max=100"`
	Surname  string `json:"apellido" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=150"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"rol" validate:"omitempty,max=20"`
}

// ForgotPasswordRequest starts the password reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UpdateProfileRequest edits the caller's own profile.
type UpdateProfileRequest struct {
	Name    string `json:"nombre" validate:"required,max=100"`
	Surname string `json:"apellido" validate:"required,max=100"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"password_actual" validate:"required"`
	NewPassword string `json:"password_nuevo" validate:"required,min=6,max=72"`
}
