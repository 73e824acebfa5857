package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cameronmore/authd/accounts"
)

const (
	// maxFailures consecutive failures lock a key out.
	maxFailures = 5
	// baseLockout doubles with every failure past maxFailures, up to maxLockout.
	baseLockout = time.Minute
	maxLockout  = 15 * time.Minute
	// failureTTL is how long a key is remembered after its last failure.
	failureTTL = time.Hour
)

// failureLimiter counts consecutive failed logins per key. Keys come from
// rateLimitKey and look the same whether or not the account exists.
type failureLimiter struct {
	mu      sync.Mutex
	entries map[string]failureEntry
	now     func() time.Time
}

type failureEntry struct {
	count int
	last  time.Time
	until time.Time
}

func newFailureLimiter(now func() time.Time) *failureLimiter {
	if now == nil {
		now = time.Now
	}
	return &failureLimiter{entries: make(map[string]failureEntry), now: now}
}

// rateLimitKey digests the normalised username and client IP so the table
// holds no raw usernames.
func rateLimitKey(username, ip string) string {
	if name, err := accounts.NormalizeUsername(username); err == nil {
		username = name
	}
	sum := sha256.Sum256([]byte(username + "\x00" + ip))
	return hex.EncodeToString(sum[:])
}

// lockoutFor is the lockout that follows the count-th consecutive failure.
func lockoutFor(count int) time.Duration {
	if count < maxFailures {
		return 0
	}
	return min(baseLockout<<min(count-maxFailures, 4), maxLockout)
}

// locked returns the remaining lockout for key, if any.
func (l *failureLimiter) locked(key string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return 0, false
	}
	now := l.now()
	if now.Sub(e.last) > failureTTL {
		delete(l.entries, key)
		return 0, false
	}
	if !now.Before(e.until) {
		return 0, false
	}
	return e.until.Sub(now), true
}

func (l *failureLimiter) fail(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.entries[key]
	e.count++
	e.last = now
	if d := lockoutFor(e.count); d > 0 {
		e.until = now.Add(d)
	}
	l.entries[key] = e
}

func (l *failureLimiter) reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// sweep forgets keys whose last failure is older than failureTTL and
// returns how many it dropped.
func (l *failureLimiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for key, e := range l.entries {
		if now.Sub(e.last) > failureTTL {
			delete(l.entries, key)
			n++
		}
	}
	return n
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Retry-After", retryAfterString(retryAfter))
	writeError(w, http.StatusTooManyRequests, "too many failed login attempts; try again later")
}

// retryAfterString rounds d up to whole seconds, at least one.
func retryAfterString(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	return strconv.Itoa(max(secs, 1))
}
