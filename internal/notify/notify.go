// Package notify is the transient notification surface of the review
// engine: every user-facing failure lands here as a dismissible entry,
// never as a blocking error, so the session stays usable.
package notify

import (
	"sync"
	"time"

	"github.com/paperglass/docreview/internal/ulid"
)

// Level classifies a notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notification is one transient, dismissible message.
type Notification struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Center collects notifications for one review session. Bounded: the
// oldest entries fall off once the cap is reached.
type Center struct {
	mu      sync.Mutex
	entries []Notification
	max     int
}

// NewCenter creates a center keeping at most max active notifications.
func NewCenter(max int) *Center {
	if max <= 0 {
		max = 50
	}
	return &Center{max: max}
}

// Publish adds a notification and returns its id.
func (c *Center) Publish(level Level, message string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := Notification{ID: ulid.New(), Level: level, Message: message, At: time.Now()}
	c.entries = append(c.entries, n)
	if len(c.entries) > c.max {
		c.entries = c.entries[len(c.entries)-c.max:]
	}
	return n.ID
}

// Dismiss removes a notification by id. Unknown ids are ignored.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.entries {
		if n.ID == id {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

// Active returns the current notifications, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.entries))
	copy(out, c.entries)
	return out
}
