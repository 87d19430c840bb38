package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// unlockLua is a Lua script that deletes a lock key only if its value matches
// the caller's unique token. This prevents one holder from accidentally
// releasing another holder's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// refreshLua re-arms a lock's TTL only if its value matches the caller's
// token, so a lock that expired and was re-acquired elsewhere is never
// extended by the old holder.
const refreshLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// LockManager implements domain.LockManager using Redis SETNX with a TTL and
// a Lua-based conditional unlock.
type LockManager struct {
	rdb       *redis.Client
	unlockSc  *redis.Script
	refreshSc *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:       c.Underlying(),
		unlockSc:  redis.NewScript(unlockLua),
		refreshSc: redis.NewScript(refreshLua),
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

// InstanceKey is the lock key guarding a single bot instance per symbol. Two
// processes trading the same symbol against the same account would fight over
// order state, so the app layer acquires this before starting.
func InstanceKey(symbol string) string {
	return "algobot:" + symbol
}

// Acquire attempts to obtain a distributed lock for the given key with the
// specified TTL. On success it returns an unlock function that must be called
// to release the lock. The unlock function is safe to call multiple times.
//
// It returns domain.ErrLockHeld if the lock is already held by another party.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	_, unlock, err := lm.acquire(ctx, key, ttl)
	return unlock, err
}

// AcquireKeepAlive is Acquire for locks that must outlive their TTL, like the
// per-instance lock: a background goroutine re-arms the TTL every ttl/3 until
// unlock is called or ctx is cancelled. If the process dies, the lock simply
// expires after at most ttl.
func (lm *LockManager) AcquireKeepAlive(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token, unlock, err := lm.acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}

	lk := lockKey(key)
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				_ = lm.refreshSc.Run(ctx, lm.rdb, []string{lk}, token, ttl.Milliseconds()).Err()
			}
		}
	}()

	released := false
	return func() {
		if released {
			return
		}
		released = true
		close(stop)
		unlock()
	}, nil
}

func (lm *LockManager) acquire(ctx context.Context, key string, ttl time.Duration) (string, func(), error) {
	token := uuid.New().String()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return "", nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", nil, domain.ErrLockHeld
	}

	// Build the unlock closure. It is safe to call more than once.
	released := false
	unlock := func() {
		if released {
			return
		}
		released = true

		// Use a background context so unlock succeeds even if the caller's
		// context is already cancelled.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = lm.unlockSc.Run(unlockCtx, lm.rdb, []string{lk}, token).Err()
	}

	return token, unlock, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
