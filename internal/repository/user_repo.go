package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"byd90-backend/internal/model"
)

// pgxPool is the subset of *pgxpool.Pool the repositories use.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	usersEmailConstraint    = "users_email_key"
	usersUsernameConstraint = "users_username_lower_key"
)

const userColumns = `id, email, username, password_hash, first_name, last_name,
	profile_picture, bio, phone_number, user_type, is_active, is_verified, is_premium,
	created_at, updated_at, last_login, email_verified_at`

type UserRepository struct {
	pool pgxPool
}

func NewUserRepository(pool pgxPool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.ProfilePicture, &u.Bio, &u.PhoneNumber, &u.UserType, &u.IsActive, &u.IsVerified, &u.IsPremium,
		&u.CreatedAt, &u.UpdatedAt, &u.LastLogin, &u.EmailVerifiedAt)
	return u, err
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, normalizeEmail(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, strings.TrimSpace(username)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by username: %w", err)
	}
	return u, nil
}

// Create inserts a new active, unverified account. Unique violations map to
// model.ErrDuplicateEmail or model.ErrDuplicateUsername.
func (r *UserRepository) Create(ctx context.Context, nu model.NewUser, now time.Time) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO users (email, username, password_hash, first_name, last_name, phone_number,
		                    user_type, is_active, is_verified, is_premium, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, true, false, false, $8, $8)
		 RETURNING `+userColumns,
		normalizeEmail(nu.Email), strings.TrimSpace(nu.Username), nu.PasswordHash,
		nu.FirstName, nu.LastName, nu.PhoneNumber, nu.UserType, now))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			switch pgErr.ConstraintName {
			case usersEmailConstraint:
				return model.User{}, model.ErrDuplicateEmail
			case usersUsernameConstraint:
				return model.User{}, model.ErrDuplicateUsername
			}
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// SetPasswordHash replaces the stored hash in a single statement.
func (r *UserRepository) SetPasswordHash(ctx context.Context, id int64, hash string, now time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, hash, now)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// MarkVerified flips is_verified once. It reports false when the account was
// already verified.
func (r *UserRepository) MarkVerified(ctx context.Context, id int64, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_verified = true, email_verified_at = $2, updated_at = $2
		 WHERE id = $1 AND is_verified = false`,
		id, now)
	if err != nil {
		return false, fmt.Errorf("mark user verified: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *UserRepository) RecordLogin(ctx context.Context, id int64, now time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, now)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

// UpdateProfile applies the non-nil fields of update.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, update model.ProfileUpdate, now time.Time) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET
		    first_name      = COALESCE($2, first_name),
		    last_name       = COALESCE($3, last_name),
		    bio             = COALESCE($4, bio),
		    phone_number    = COALESCE($5, phone_number),
		    profile_picture = COALESCE($6, profile_picture),
		    updated_at      = $7
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, update.FirstName, update.LastName, update.Bio, update.PhoneNumber, update.ProfilePicture, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool, now time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1`,
		id, active, now)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
