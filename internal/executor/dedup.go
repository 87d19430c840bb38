package executor

import (
	"sync"
	"time"
)

// Dedup prevents an order intent from being executed more than once within a
// configurable time-to-live window. Decision cycles can re-emit equivalent
// intents after a reconnect or restart; the venue must not see the same one
// twice. It is safe for concurrent use.
type Dedup struct {
	seen map[string]time.Time // intent ID -> last seen time
	ttl  time.Duration
	mu   sync.Mutex
}

// NewDedup creates a Dedup instance that considers an intent a duplicate if
// it has been seen within the given ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// IsDuplicate returns true if the intent ID has been seen within the TTL
// window. If the intent has not been seen (or has expired), it is recorded
// and false is returned.
func (d *Dedup) IsDuplicate(intentID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if lastSeen, ok := d.seen[intentID]; ok {
		if now.Sub(lastSeen) < d.ttl {
			return true
		}
	}

	d.seen[intentID] = now
	return false
}

// Cleanup removes entries that have expired beyond the TTL. This should be
// called periodically to prevent unbounded memory growth.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for id, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, id)
		}
	}
}
