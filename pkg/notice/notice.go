// Package notice keeps the short lived messages shown to a user after a
// board change or a failed request.
package notice

import (
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/kanbanlive/boardsync.go/pkg/constants"
	"github.com/kanbanlive/boardsync.go/pkg/logger"
)

type Level int

const (
	LevelSuccess Level = iota
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

type Notice struct {
	ID        uuid.UUID
	Level     Level
	Message   string
	CreatedAt time.Time
}

// Status tells a listener what happened to a notice.
type Status int

const (
	Shown Status = iota
	Dismissed
)

type Listener func(n Notice, status Status)

// Center holds the notices currently visible. Each notice is dismissed
// automatically once its TTL elapses.
type Center struct {
	ttl    time.Duration
	logger logger.Logger

	mu        sync.Mutex
	active    []Notice
	timers    map[uuid.UUID]*time.Timer
	listeners []Listener
	closed    bool
}

type Option func(*Center)

// WithTTL overrides how long notices stay visible. Zero keeps them until
// dismissed by hand.
func WithTTL(ttl time.Duration) Option {
	return func(c *Center) {
		c.ttl = ttl
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Center) {
		c.logger = l
	}
}

func NewCenter(opts ...Option) *Center {
	c := &Center{
		ttl:    constants.NoticeTTL,
		logger: logger.Discard(),
		timers: make(map[uuid.UUID]*time.Timer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Center) Success(msg string) Notice {
	return c.Show(LevelSuccess, msg)
}

func (c *Center) Error(msg string) Notice {
	return c.Show(LevelError, msg)
}

// Show publishes a notice and schedules its dismissal.
func (c *Center) Show(level Level, msg string) Notice {
	n := Notice{
		ID:        uuid.Must(uuid.NewV4()),
		Level:     level,
		Message:   msg,
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return n
	}
	c.active = append(c.active, n)
	if c.ttl > 0 {
		id := n.ID
		c.timers[id] = time.AfterFunc(c.ttl, func() { c.Dismiss(id) })
	}
	listeners := c.listeners
	c.mu.Unlock()

	c.logger.Debug("notice.Center showing notice", "level", level, "message", msg)
	for _, l := range listeners {
		l(n, Shown)
	}
	return n
}

// Dismiss removes a notice. It reports false if the notice was not visible.
func (c *Center) Dismiss(id uuid.UUID) bool {
	c.mu.Lock()
	idx := -1
	for i, n := range c.active {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	n := c.active[idx]
	c.active = append(c.active[:idx:idx], c.active[idx+1:]...)
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	listeners := c.listeners
	c.mu.Unlock()

	for _, l := range listeners {
		l(n, Dismissed)
	}
	return true
}

// Active returns the visible notices, oldest first.
func (c *Center) Active() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.active...)
}

// Latest returns the most recent visible notice.
func (c *Center) Latest() (Notice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.active) == 0 {
		return Notice{}, false
	}
	return c.active[len(c.active)-1], true
}

// OnChange registers a listener. Listeners run on the goroutine that showed
// or dismissed the notice, which for automatic dismissal is a timer goroutine.
func (c *Center) OnChange(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners[:len(c.listeners):len(c.listeners)], l)
}

// Close stops pending dismissal timers. Notices shown afterwards are dropped.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}
