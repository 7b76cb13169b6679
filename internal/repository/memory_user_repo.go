package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"byd90-backend/internal/model"
)

// MemoryUserRepository keeps accounts in process memory. It enforces the same
// uniqueness rules as the users table and is used for local runs and tests.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]model.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byID: make(map[int64]model.User)}
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id int64) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if u, ok := r.findByEmailLocked(normalizeEmail(email)); ok {
		return u, nil
	}
	return model.User{}, model.ErrUserNotFound
}

func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if u, ok := r.findByUsernameLocked(username); ok {
		return u, nil
	}
	return model.User{}, model.ErrUserNotFound
}

func (r *MemoryUserRepository) Create(_ context.Context, nu model.NewUser, now time.Time) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := normalizeEmail(nu.Email)
	username := strings.TrimSpace(nu.Username)
	if _, ok := r.findByEmailLocked(email); ok {
		return model.User{}, model.ErrDuplicateEmail
	}
	if _, ok := r.findByUsernameLocked(username); ok {
		return model.User{}, model.ErrDuplicateUsername
	}

	r.nextID++
	u := model.User{
		ID:           r.nextID,
		Email:        email,
		Username:     username,
		PasswordHash: nu.PasswordHash,
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		PhoneNumber:  cloneString(nu.PhoneNumber),
		UserType:     nu.UserType,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[u.ID] = u
	return u, nil
}

func (r *MemoryUserRepository) SetPasswordHash(_ context.Context, id int64, hash string, now time.Time) error {
	return r.update(id, func(u *model.User) {
		u.PasswordHash = hash
		u.UpdatedAt = now
	})
}

func (r *MemoryUserRepository) MarkVerified(_ context.Context, id int64, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok || u.IsVerified {
		return false, nil
	}
	u.IsVerified = true
	u.EmailVerifiedAt = &now
	u.UpdatedAt = now
	r.byID[id] = u
	return true, nil
}

func (r *MemoryUserRepository) RecordLogin(_ context.Context, id int64, now time.Time) error {
	err := r.update(id, func(u *model.User) {
		u.LastLogin = &now
	})
	if errors.Is(err, model.ErrUserNotFound) {
		return nil
	}
	return err
}

func (r *MemoryUserRepository) UpdateProfile(_ context.Context, id int64, update model.ProfileUpdate, now time.Time) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	if update.FirstName != nil {
		u.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		u.LastName = *update.LastName
	}
	if update.Bio != nil {
		u.Bio = cloneString(update.Bio)
	}
	if update.PhoneNumber != nil {
		u.PhoneNumber = cloneString(update.PhoneNumber)
	}
	if update.ProfilePicture != nil {
		u.ProfilePicture = cloneString(update.ProfilePicture)
	}
	u.UpdatedAt = now
	r.byID[id] = u
	return u, nil
}

func (r *MemoryUserRepository) SetActive(_ context.Context, id int64, active bool, now time.Time) error {
	return r.update(id, func(u *model.User) {
		u.IsActive = active
		u.UpdatedAt = now
	})
}

func (r *MemoryUserRepository) update(id int64, apply func(*model.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return model.ErrUserNotFound
	}
	apply(&u)
	r.byID[id] = u
	return nil
}

func (r *MemoryUserRepository) findByEmailLocked(email string) (model.User, bool) {
	for _, u := range r.byID {
		if u.Email == email {
			return u, true
		}
	}
	return model.User{}, false
}

func (r *MemoryUserRepository) findByUsernameLocked(username string) (model.User, bool) {
	username = strings.TrimSpace(username)
	for _, u := range r.byID {
		if strings.EqualFold(u.Username, username) {
			return u, true
		}
	}
	return model.User{}, false
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
