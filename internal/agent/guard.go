package agent

import (
	"sync"
	"time"
)

const DefaultWindow = 3 * time.Second

// Fingerprint identifies what an alert looks like, not where it came from.
type Fingerprint string

// FingerprintOf deliberately ignores note ids and event ids: two visually
// identical alerts inside the window collapse into one.
func FingerprintOf(title, body string) Fingerprint {
	return Fingerprint(title + "|" + body)
}

// Guard is a time-bounded set of recently shown fingerprints. Each record
// schedules its own eviction, so the set only holds what was shown in the
// last window.
type Guard struct {
	window time.Duration
	now    func() time.Time
	after  func(time.Duration, func())

	mu   sync.Mutex
	seen map[Fingerprint]time.Time
}

type GuardOption func(*Guard)

// WithClock replaces time.Now and time.AfterFunc, for tests.
func WithClock(now func() time.Time, after func(time.Duration, func())) GuardOption {
	return func(g *Guard) {
		g.now = now
		g.after = after
	}
}

func NewGuard(window time.Duration, opts ...GuardOption) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	g := &Guard{
		window: window,
		now:    time.Now,
		after:  func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		seen:   make(map[Fingerprint]time.Time),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// ShouldSuppress reports whether fp was recorded within the window. When it
// was not, fp is recorded in the same critical section, so of two concurrent
// callers exactly one gets false.
func (g *Guard) ShouldSuppress(fp Fingerprint) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if at, ok := g.seen[fp]; ok && now.Sub(at) < g.window {
		return true
	}
	g.recordLocked(fp, now)
	return false
}

// remember records fp without asking; used for announcements from other instances.
func (g *Guard) remember(fp Fingerprint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recordLocked(fp, g.now())
}

func (g *Guard) recordLocked(fp Fingerprint, at time.Time) {
	g.seen[fp] = at
	g.after(g.window, func() { g.expire(fp, at) })
}

// expire drops fp unless it was recorded again after at.
func (g *Guard) expire(fp Fingerprint, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.seen[fp]; ok && cur.Equal(at) {
		delete(g.seen, fp)
	}
}

func (g *Guard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
