package ports

import "context"

// KeyValueStore is the durable persistence capability behind the session.
// Get returns domain.ErrKeyNotFound for absent keys; Remove of an absent key
// is not an error.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
