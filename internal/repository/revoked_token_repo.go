package repository

import (
	"context"
	"fmt"
	"time"
)

// RevokedTokenRepository persists revoked token ids in the revoked_tokens table.
type RevokedTokenRepository struct {
	pool pgxPool
	now  func() time.Time
}

func NewRevokedTokenRepository(pool pgxPool) *RevokedTokenRepository {
	return &RevokedTokenRepository{pool: pool, now: time.Now}
}

func (r *RevokedTokenRepository) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO revoked_tokens (jti, revoked_at, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (jti) DO NOTHING`,
		jti, r.now().UTC(), expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *RevokedTokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// CleanExpired drops entries whose token would have expired anyway.
func (r *RevokedTokenRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("clean expired revoked tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
