package model

type RegisterRequest struct {
	Email           string   `json:"email"`
	Username        string   `json:"username"`
	Password        string   `json:"password"`
	ConfirmPassword string   `json:"confirm_password"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	UserType        UserType `json:"user_type"`
	PhoneNumber     *string  `json:"phone_number"`
	TermsAccepted   bool     `json:"terms_accepted"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type PasswordResetConfirmRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type EmailVerificationRequest struct {
	Token string `json:"token"`
}

type UserStatusRequest struct {
	IsActive *bool `json:"is_active"`
}
