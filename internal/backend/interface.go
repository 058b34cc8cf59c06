package backend

import (
	"context"

	"bilancio/internal/gateway"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult is a backend plus its optional cleanup.
type BackendResult struct {
	Backend gateway.Backend
	// Lookups is the backend's LookupReader behind the LRU cache.
	Lookups gateway.LookupReader
	Cleanup CleanupFunc
}

// Pinger is implemented by backends that can check connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type BackendType string

const (
	RemoteBackend BackendType = "remote"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case RemoteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
