package security

import (
	"strconv"
	"unicode"
	"unicode/utf8"

	"byd90-backend/internal/model"
)

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

// PasswordPolicy is the strength rule applied to new passwords.
type PasswordPolicy struct {
	MinLength    int
	MaxBytes     int
	RequireUpper bool
	RequireLower bool
	RequireDigit bool
}

func DefaultPasswordPolicy(minLength int) PasswordPolicy {
	if minLength <= 0 {
		minLength = 8
	}
	return PasswordPolicy{
		MinLength:    minLength,
		MaxBytes:     maxPasswordBytes,
		RequireUpper: true,
		RequireLower: true,
		RequireDigit: true,
	}
}

// Validate reports the first rule password breaks as a *model.ValidationError.
func (p PasswordPolicy) Validate(field, password string) error {
	if utf8.RuneCountInString(password) < p.MinLength {
		return model.NewValidationError(field, "password must be at least "+strconv.Itoa(p.MinLength)+" characters long")
	}
	if p.MaxBytes > 0 && len(password) > p.MaxBytes {
		return model.NewValidationError(field, "password must be at most "+strconv.Itoa(p.MaxBytes)+" bytes long")
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	if p.RequireUpper && !upper {
		return model.NewValidationError(field, "password must contain at least one uppercase letter")
	}
	if p.RequireLower && !lower {
		return model.NewValidationError(field, "password must contain at least one lowercase letter")
	}
	if p.RequireDigit && !digit {
		return model.NewValidationError(field, "password must contain at least one digit")
	}

	return nil
}
