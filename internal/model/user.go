package model

import "time"

type UserType string

const (
	UserTypeAthlete UserType = "athlete"
	UserTypeCoach   UserType = "coach"
	UserTypeAdmin   UserType = "admin"
)

// Valid reports whether t is a known user type.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeAthlete, UserTypeCoach, UserTypeAdmin:
		return true
	}
	return false
}

// SelfRegistrable reports whether t may be chosen at sign-up.
func (t UserType) SelfRegistrable() bool {
	return t == UserTypeAthlete || t == UserTypeCoach
}

type User struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	PasswordHash    string     `json:"-"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	ProfilePicture  *string    `json:"profile_picture,omitempty"`
	Bio             *string    `json:"bio,omitempty"`
	PhoneNumber     *string    `json:"phone_number,omitempty"`
	UserType        UserType   `json:"user_type"`
	IsActive        bool       `json:"is_active"`
	IsVerified      bool       `json:"is_verified"`
	IsPremium       bool       `json:"is_premium"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastLogin       *time.Time `json:"last_login,omitempty"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
}

// NewUser carries the fields persisted when an account is created.
type NewUser struct {
	Email        string
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	PhoneNumber  *string
	UserType     UserType
}

// UserSummary is the public projection of a User returned by auth endpoints.
type UserSummary struct {
	ID         int64    `json:"id"`
	Email      string   `json:"email"`
	Username   string   `json:"username"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	UserType   UserType `json:"user_type"`
	IsVerified bool     `json:"is_verified"`
	IsPremium  bool     `json:"is_premium"`
}

func (u User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		UserType:   u.UserType,
		IsVerified: u.IsVerified,
		IsPremium:  u.IsPremium,
	}
}

// ProfileUpdate lists the self-editable profile fields. Nil leaves a field unchanged.
type ProfileUpdate struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Bio            *string `json:"bio"`
	PhoneNumber    *string `json:"phone_number"`
	ProfilePicture *string `json:"profile_picture"`
}

func (p ProfileUpdate) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Bio == nil && p.PhoneNumber == nil && p.ProfilePicture == nil
}

// AuthClaims is the verified identity attached to an authenticated request.
type AuthClaims struct {
	UserID    string    `json:"sub"`
	Type      string    `json:"type"`
	TokenID   string    `json:"jti"`
	ExpiresAt time.Time `json:"exp"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthResult is returned by registration and login.
type AuthResult struct {
	TokenPair
	User              UserSummary `json:"user"`
	VerificationToken string      `json:"verification_token,omitempty"`
}
