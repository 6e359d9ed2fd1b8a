package watch

import (
	"sync"
	"time"
)

// Poller compares the file's modification time and size against the last seen
// values. A file that disappears is not a change; its reappearance is.
type Poller struct {
	path     string
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	seen      stamp
	lastCheck time.Time
}

// NewPoller starts with the current state of path as seen. Calls to Changed
// closer together than interval return false without touching the disk.
func NewPoller(path string, interval time.Duration) *Poller {
	p := &Poller{path: path, interval: interval, now: time.Now}
	p.seen = statStamp(path)
	return p
}

// Path returns the watched file.
func (p *Poller) Path() string { return p.path }

func (p *Poller) Changed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.interval > 0 && !p.lastCheck.IsZero() && now.Sub(p.lastCheck) < p.interval {
		return false
	}
	p.lastCheck = now

	cur := statStamp(p.path)
	if !cur.exists || cur.equal(p.seen) {
		return false
	}
	p.seen = cur
	return true
}

func (p *Poller) Sync() {
	p.mu.Lock()
	p.seen = statStamp(p.path)
	p.mu.Unlock()
}

func (p *Poller) Close() error { return nil }
