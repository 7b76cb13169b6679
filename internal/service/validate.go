package service

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"byd90-backend/internal/model"
	"byd90-backend/internal/security"
	"byd90-backend/internal/util"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)

const (
	maxEmailLength = 255
	maxNameLength  = 100
	maxPhoneLength = 20
	maxBioLength   = 2000
	maxURLLength   = 500
)

// normalizeEmail lowercases and syntax-checks an address.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", model.NewValidationError("email", "email is required")
	}
	if len(email) > maxEmailLength {
		return "", model.NewValidationError("email", "email is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", model.NewValidationError("email", "invalid email address")
	}
	return email, nil
}

// validateRegistration checks the sign-up payload and returns it normalized.
func validateRegistration(req model.RegisterRequest, policy security.PasswordPolicy) (model.RegisterRequest, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return req, err
	}
	req.Email = email

	req.Username = strings.TrimSpace(req.Username)
	if !usernamePattern.MatchString(req.Username) {
		return req, model.NewValidationError("username", "username must be 3-50 characters of letters, digits, '_' or '-'")
	}

	if err := policy.Validate("password", req.Password); err != nil {
		return req, err
	}
	if req.ConfirmPassword != "" && req.Password != req.ConfirmPassword {
		return req, model.NewValidationError("confirm_password", "passwords do not match")
	}

	req.FirstName = util.SanitizeText(req.FirstName, false)
	req.LastName = util.SanitizeText(req.LastName, false)
	if err := validateName("first_name", req.FirstName); err != nil {
		return req, err
	}
	if err := validateName("last_name", req.LastName); err != nil {
		return req, err
	}

	req.UserType = model.UserType(strings.ToLower(strings.TrimSpace(string(req.UserType))))
	if !req.UserType.SelfRegistrable() {
		return req, model.NewValidationError("user_type", "user_type must be 'athlete' or 'coach'")
	}

	if req.PhoneNumber != nil {
		phone := strings.TrimSpace(*req.PhoneNumber)
		if phone == "" {
			req.PhoneNumber = nil
		} else if err := validateMaxLength("phone_number", phone, maxPhoneLength); err != nil {
			return req, err
		} else {
			req.PhoneNumber = &phone
		}
	}

	if !req.TermsAccepted {
		return req, model.NewValidationError("terms_accepted", "terms and conditions must be accepted")
	}

	return req, nil
}

// validateProfileUpdate trims and bounds the provided profile fields.
func validateProfileUpdate(update model.ProfileUpdate) (model.ProfileUpdate, error) {
	if update.Empty() {
		return update, model.NewValidationError("", "no profile fields provided")
	}

	for _, field := range []struct {
		name      string
		value     **string
		max       int
		required  bool
		multiline bool
	}{
		{name: "first_name", value: &update.FirstName, max: maxNameLength, required: true},
		{name: "last_name", value: &update.LastName, max: maxNameLength, required: true},
		{name: "bio", value: &update.Bio, max: maxBioLength, multiline: true},
		{name: "phone_number", value: &update.PhoneNumber, max: maxPhoneLength},
		{name: "profile_picture", value: &update.ProfilePicture, max: maxURLLength},
	} {
		if *field.value == nil {
			continue
		}
		trimmed := util.SanitizeText(**field.value, field.multiline)
		if field.required {
			if err := validateName(field.name, trimmed); err != nil {
				return update, err
			}
		} else if err := validateMaxLength(field.name, trimmed, field.max); err != nil {
			return update, err
		}
		*field.value = &trimmed
	}

	return update, nil
}

func validateName(field, value string) error {
	if value == "" {
		return model.NewValidationError(field, field+" is required")
	}
	return validateMaxLength(field, value, maxNameLength)
}

func validateMaxLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return model.NewValidationError(field, field+" is too long")
	}
	return nil
}
