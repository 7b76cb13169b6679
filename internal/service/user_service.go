package service

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"byd90-backend/internal/model"
)

// UserService covers profile self-service and admin account management.
type UserService struct {
	users IdentityStore
	now   func() time.Time
}

func NewUserService(users IdentityStore) *UserService {
	return &UserService{users: users, now: time.Now}
}

func (s *UserService) GetByID(ctx context.Context, id int64) (model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil && !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, oops.Code("USER_LOOKUP_FAILED").With("operation", "get_user").Wrap(err)
	}
	return user, err
}

func (s *UserService) UpdateProfile(ctx context.Context, id int64, update model.ProfileUpdate) (model.User, error) {
	update, err := validateProfileUpdate(update)
	if err != nil {
		return model.User{}, err
	}

	user, err := s.users.UpdateProfile(ctx, id, update, s.now().UTC())
	if err != nil && !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, oops.Code("USER_UPDATE_FAILED").With("operation", "update_profile").Wrap(err)
	}
	return user, err
}

// SetActive activates or deactivates an account. Admins cannot deactivate themselves.
func (s *UserService) SetActive(ctx context.Context, actorID, id int64, active bool) (model.User, error) {
	if actorID == id && !active {
		return model.User{}, model.NewValidationError("is_active", "admins cannot deactivate their own account")
	}

	if err := s.users.SetActive(ctx, id, active, s.now().UTC()); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.User{}, err
		}
		return model.User{}, oops.Code("USER_UPDATE_FAILED").With("operation", "set_active").Wrap(err)
	}
	return s.GetByID(ctx, id)
}
