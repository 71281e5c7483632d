package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/fivetwenty-io/svc-client/internal/constants"
)

// CacheType represents the type of cache backend.
type CacheType string

const (
	// CacheTypeMemory represents in-memory cache.
	CacheTypeMemory CacheType = "memory"

	// CacheTypeNATS represents NATS KV cache.
	CacheTypeNATS CacheType = "nats"

	// CacheTypeNone represents no caching.
	CacheTypeNone CacheType = "none"
)

// CacheConfig configures the credentials cache backend.
type CacheConfig struct {
	// Type is the cache backend type
	Type CacheType `mapstructure:"type" yaml:"type"`

	// Memory cache configuration, also the local tier in front of NATS
	Memory *MemoryCacheConfig `mapstructure:"memory" yaml:"memory,omitempty"`

	// NATS KV cache configuration
	NATS *NATSKVConfig `mapstructure:"nats" yaml:"nats,omitempty"`
}

// MemoryCacheConfig configures memory cache.
type MemoryCacheConfig struct {
	// MaxSize is the maximum number of items in the cache
	MaxSize int `mapstructure:"max_size" yaml:"max_size"`
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Type: CacheTypeMemory,
		Memory: &MemoryCacheConfig{
			MaxSize: constants.DefaultCacheSize,
		},
	}
}

func (c *CacheConfig) memorySize() int {
	if c.Memory != nil && c.Memory.MaxSize > 0 {
		return c.Memory.MaxSize
	}

	return constants.DefaultCacheSize
}

// NewCacheFromConfig creates a cache backend from configuration.
func NewCacheFromConfig(config *CacheConfig) (Cache, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	switch config.Type {
	case CacheTypeMemory, "":
		return NewMemoryCache(config.memorySize()), nil

	case CacheTypeNATS:
		if config.NATS == nil {
			return nil, constants.ErrNATSConfigRequired
		}

		shared, err := NewNATSKVCache(config.NATS)
		if err != nil {
			return nil, err
		}

		return NewTieredCache(NewMemoryCache(config.memorySize()), shared), nil

	case CacheTypeNone:
		return NewNoOpCache(), nil

	default:
		return nil, fmt.Errorf("%w: %s", constants.ErrUnsupportedCacheType, config.Type)
	}
}

// NoOpCache is a cache that does nothing (no caching).
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// Get always returns an error (nothing cached).
func (c *NoOpCache) Get(context.Context, string) (*CacheEntry, error) {
	return nil, constants.ErrCacheDisabled
}

// Set does nothing.
func (c *NoOpCache) Set(context.Context, string, *CacheEntry) error {
	return nil
}

// Delete does nothing.
func (c *NoOpCache) Delete(context.Context, string) error {
	return nil
}

// Clear does nothing.
func (c *NoOpCache) Clear(context.Context) error {
	return nil
}

// Has always returns false.
func (c *NoOpCache) Has(context.Context, string) bool {
	return false
}

// TieredCache keeps a process-local copy of credentials in front of a
// shared store. Reads are served locally until the local copy expires,
// writes go to both tiers, and an invalidation removes the key from both so
// that no process keeps using rejected credentials.
type TieredCache struct {
	local  *MemoryCache
	shared Cache
}

// NewTieredCache puts local in front of shared.
func NewTieredCache(local *MemoryCache, shared Cache) *TieredCache {
	return &TieredCache{local: local, shared: shared}
}

// Get returns the local entry, or the shared one copied into the local tier.
func (c *TieredCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	if entry, err := c.local.Get(ctx, key); err == nil {
		return entry, nil
	}

	entry, err := c.shared.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", constants.ErrKeyNotFoundInAnyCache, err)
	}

	_ = c.local.Set(ctx, key, entry)

	return entry, nil
}

// Set writes the local tier, then the shared one. A shared failure is
// returned, but the local copy is kept.
func (c *TieredCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	_ = c.local.Set(ctx, key, entry)

	return c.shared.Set(ctx, key, entry)
}

// Delete removes key from both tiers.
func (c *TieredCache) Delete(ctx context.Context, key string) error {
	return errors.Join(c.local.Delete(ctx, key), c.shared.Delete(ctx, key))
}

// Clear empties both tiers.
func (c *TieredCache) Clear(ctx context.Context) error {
	return errors.Join(c.local.Clear(ctx), c.shared.Clear(ctx))
}

// Has reports whether either tier holds key.
func (c *TieredCache) Has(ctx context.Context, key string) bool {
	return c.local.Has(ctx, key) || c.shared.Has(ctx, key)
}

// Close closes the shared tier when it holds a connection.
func (c *TieredCache) Close() {
	if closer, ok := c.shared.(interface{ Close() }); ok {
		closer.Close()
	}
}
