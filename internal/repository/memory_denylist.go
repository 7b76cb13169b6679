package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryDenylist tracks revoked token ids for a single process.
type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{entries: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDenylist) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries[jti] = expiresAt
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	expiresAt, ok := d.entries[jti]
	if !ok {
		return false, nil
	}
	if !d.now().Before(expiresAt) {
		delete(d.entries, jti)
	}
	return true, nil
}

// CleanExpired drops entries whose token would have expired anyway.
func (d *MemoryDenylist) CleanExpired(_ context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	var removed int64
	for jti, expiresAt := range d.entries {
		if !now.Before(expiresAt) {
			delete(d.entries, jti)
			removed++
		}
	}
	return removed, nil
}

// NoopDenylist never revokes anything; logout is then purely client-side.
type NoopDenylist struct{}

func (NoopDenylist) Revoke(context.Context, string, time.Time) error { return nil }

func (NoopDenylist) IsRevoked(context.Context, string) (bool, error) { return false, nil }
