package ratelimit

import (
	"sync"
	"time"

	"concierge-chat/internal/domain"
)

const (
	// DefaultCooldown is the minimum gap between two sends from the same
	// non-admin user.
	DefaultCooldown = 2000 * time.Millisecond

	pruneInterval = 5 * time.Minute
	pruneAfter    = 10 * time.Minute
)

// CooldownLimiter gates the message send path with a per-user cooldown window.
// It owns the ledger of last-send timestamps; all reads and writes go through
// Allow so each key keeps a single-writer view. Idle entries are evicted by a
// background loop so the ledger stays bounded.
type CooldownLimiter struct {
	cooldown time.Duration
	lastSend map[string]time.Time
	mu       sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewCooldownLimiter(cooldown time.Duration) *CooldownLimiter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	l := &CooldownLimiter{
		cooldown: cooldown,
		lastSend: make(map[string]time.Time),
		stopChan: make(chan struct{}),
	}
	go l.pruneLoop()
	return l
}

// Allow reports whether userID may send at instant now. Admins always pass and
// never touch the ledger. A rejected attempt leaves the ledger untouched and
// returns the remaining wait; an accepted one stamps now.
func (l *CooldownLimiter) Allow(userID string, role domain.Role, now time.Time) (bool, time.Duration) {
	if role == domain.RoleAdmin {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.lastSend[userID]; ok {
		if gap := now.Sub(last); gap < l.cooldown {
			return false, l.cooldown - gap
		}
	}
	l.lastSend[userID] = now
	return true, 0
}

// RetryAfterSeconds converts a remaining wait into the whole-second value
// reported to the sender (ceiling).
func RetryAfterSeconds(remaining time.Duration) int {
	secs := int(remaining / time.Second)
	if remaining%time.Second != 0 {
		secs++
	}
	return secs
}

func (l *CooldownLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
}

func (l *CooldownLimiter) pruneLoop() {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.prune(time.Now())
		}
	}
}

func (l *CooldownLimiter) prune(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-pruneAfter)
	for userID, last := range l.lastSend {
		if last.Before(cutoff) {
			delete(l.lastSend, userID)
		}
	}
}

func (l *CooldownLimiter) ledgerSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lastSend)
}
