package models

// SignupRequest is the body of POST /api/auth/signup
type SignupRequest struct {
	Name     string `json:"name" form:"name" validate:"required,min=2,max=30,personname"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
}

type ResetPasswordRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

type UpdatePasswordRequest struct {
	Password string `json:"password" form:"password" validate:"required,min=8"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" form:"oldPassword" validate:"required,min=8"`
	NewPassword string `json:"newPassword" form:"newPassword" validate:"required,min=8"`
}

type CreatePostRequest struct {
	Title string `json:"title" form:"title" validate:"required,max=100"`
	Body  string `json:"body" form:"body" validate:"required"`
}

// UpdatePostRequest fields are optional; empty means keep the current value.
type UpdatePostRequest struct {
	Title string `json:"title" form:"title" validate:"omitempty,max=100"`
	Body  string `json:"body" form:"body"`
}

// AuthResult is returned by signup, login and update-password
type AuthResult struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}
