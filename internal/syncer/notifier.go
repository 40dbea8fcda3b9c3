package syncer

import (
	"log/slog"
	"sync"
	"time"
)

// Notifier receives human-readable progress messages during a run.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(message string)

// Notify calls f.
func (f NotifierFunc) Notify(message string) { f(message) }

// NewLogNotifier returns a Notifier that logs every message.
func NewLogNotifier(logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return NotifierFunc(func(message string) {
		logger.Info("sync status", slog.String("message", message))
	})
}

// MultiNotifier fans each message out to every notifier in order.
func MultiNotifier(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(message string) {
		for _, n := range notifiers {
			if n != nil {
				n.Notify(message)
			}
		}
	})
}

// StatusMessage is one timestamped progress line.
type StatusMessage struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Feed retains the most recent progress messages for the status API.
// Safe for concurrent use.
type Feed struct {
	mu       sync.Mutex
	max      int
	messages []StatusMessage
}

// NewFeed constructs a Feed keeping at most max messages.
func NewFeed(max int) *Feed {
	if max <= 0 {
		max = 200
	}
	return &Feed{max: max}
}

// Notify appends a message, evicting the oldest past capacity.
func (f *Feed) Notify(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, StatusMessage{Time: time.Now(), Message: message})
	if len(f.messages) > f.max {
		f.messages = f.messages[len(f.messages)-f.max:]
	}
}

// Recent returns retained messages, newest first.
func (f *Feed) Recent() []StatusMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]StatusMessage, len(f.messages))
	for i, m := range f.messages {
		out[len(f.messages)-1-i] = m
	}
	return out
}
