package agent

import "sync"

// Channel carries "about to show" announcements between agent instances of
// one origin. Delivery is best effort; a missed announcement costs at most a
// duplicate alert.
type Channel interface {
	// Join subscribes id; onAnnounce gets every fingerprint announced by others.
	Join(id string, onAnnounce func(Fingerprint)) (leave func())
	Announce(from string, fp Fingerprint)
}

// LocalChannel is an in-process Channel. Announce returns after every other
// member has been told.
type LocalChannel struct {
	mu      sync.RWMutex
	members map[string]func(Fingerprint)
}

func NewLocalChannel() *LocalChannel {
	return &LocalChannel{members: make(map[string]func(Fingerprint))}
}

func (c *LocalChannel) Join(id string, onAnnounce func(Fingerprint)) func() {
	c.mu.Lock()
	c.members[id] = onAnnounce
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.members, id)
			c.mu.Unlock()
		})
	}
}

func (c *LocalChannel) Announce(from string, fp Fingerprint) {
	c.mu.RLock()
	targets := make([]func(Fingerprint), 0, len(c.members))
	for id, fn := range c.members {
		if id != from {
			targets = append(targets, fn)
		}
	}
	c.mu.RUnlock()

	for _, fn := range targets {
		fn(fp)
	}
}
