// Package cache provides in-process caches for slow-changing lookups
// (categories and accounts) fetched from the remote API.
package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache is the read/write surface shared by all caches.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Purge()
	Size() int
}

// Cleaner is implemented by caches that hold expiring entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically sweeps expired entries from registered caches.
type Manager struct {
	caches []Cleaner
	logger *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Register adds a cache to the sweep. Not safe to call once Run started.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// Run sweeps every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("Cache sweep", "removed", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Sweep cleans all registered caches once and returns the number of
// removed entries.
func (m *Manager) Sweep() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}
