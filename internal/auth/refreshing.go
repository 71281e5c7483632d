package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/svc-client/internal/constants"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"golang.org/x/sync/singleflight"
)

// RefreshingProvider wraps a provider, reusing its credentials until they
// are about to expire. Concurrent refreshes are coalesced into one fetch,
// and fetched credentials are written through to an optional shared cache.
type RefreshingProvider struct {
	source   svc.CredentialsProvider
	cache    Cache
	cacheKey string
	window   time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   svc.Logger

	mutex   sync.RWMutex
	current *svc.Credentials
	group   singleflight.Group
}

// RefreshOption configures a RefreshingProvider.
type RefreshOption func(*RefreshingProvider)

// WithCache shares fetched credentials through cache under key.
func WithCache(cache Cache, key string) RefreshOption {
	return func(p *RefreshingProvider) {
		p.cache = cache
		p.cacheKey = key
	}
}

// WithExpiryWindow refreshes credentials this long before they expire.
func WithExpiryWindow(window time.Duration) RefreshOption {
	return func(p *RefreshingProvider) {
		p.window = window
	}
}

// WithRefreshTimeout bounds one refresh. A refresh outlives the caller that
// started it so that other callers waiting on it are not failed by that
// caller's cancellation.
func WithRefreshTimeout(timeout time.Duration) RefreshOption {
	return func(p *RefreshingProvider) {
		p.timeout = timeout
	}
}

// WithRefreshClock overrides the clock.
func WithRefreshClock(now func() time.Time) RefreshOption {
	return func(p *RefreshingProvider) {
		p.now = now
	}
}

// WithRefreshLogger logs refreshes and cache failures.
func WithRefreshLogger(logger svc.Logger) RefreshOption {
	return func(p *RefreshingProvider) {
		p.logger = logger
	}
}

// NewRefreshingProvider wraps source.
func NewRefreshingProvider(source svc.CredentialsProvider, opts ...RefreshOption) *RefreshingProvider {
	p := &RefreshingProvider{
		source:   source,
		cacheKey: "credentials",
		window:   constants.CredentialsExpiryWindow,
		timeout:  constants.CredentialsRefreshTimeout,
		now:      time.Now,
		logger:   svc.NopLogger{},
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.timeout <= 0 {
		p.timeout = constants.CredentialsRefreshTimeout
	}

	return p
}

// Retrieve implements svc.CredentialsProvider.
func (p *RefreshingProvider) Retrieve(ctx context.Context) (svc.Credentials, error) {
	if creds, ok := p.cached(); ok {
		return creds, nil
	}

	results := p.group.DoChan(p.cacheKey, func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()

		return p.refresh(refreshCtx)
	})

	select {
	case <-ctx.Done():
		return svc.Credentials{}, fmt.Errorf("waiting for credentials: %w", ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return svc.Credentials{}, res.Err
		}

		creds, _ := res.Val.(svc.Credentials)

		return creds, nil
	}
}

func (p *RefreshingProvider) refresh(ctx context.Context) (svc.Credentials, error) {
	if creds, ok := p.cached(); ok {
		return creds, nil
	}

	if creds, ok := p.fromCache(ctx); ok {
		p.store(creds)

		return creds, nil
	}

	creds, err := p.source.Retrieve(ctx)
	if err != nil {
		return svc.Credentials{}, err
	}

	p.logger.Debug("Credentials refreshed", map[string]interface{}{
		"source":  creds.Source,
		"expires": creds.Expires,
	})

	p.store(creds)
	p.toCache(ctx, creds)

	return creds, nil
}

// Invalidate drops the held credentials so the next Retrieve fetches new
// ones.
func (p *RefreshingProvider) Invalidate() {
	p.mutex.Lock()
	p.current = nil
	p.mutex.Unlock()

	if p.cache != nil {
		if err := p.cache.Delete(context.Background(), p.cacheKey); err != nil {
			p.logger.Warn("Failed to drop cached credentials", map[string]interface{}{"error": err.Error()})
		}
	}
}

// ExpiresAt returns the expiry of the held credentials.
func (p *RefreshingProvider) ExpiresAt() time.Time {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if p.current == nil {
		return time.Time{}
	}

	return p.current.Expires
}

func (p *RefreshingProvider) usable(creds svc.Credentials) bool {
	return creds.HasKeys() && !creds.ExpiresWithin(p.now(), p.window)
}

func (p *RefreshingProvider) cached() (svc.Credentials, bool) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if p.current == nil || !p.usable(*p.current) {
		return svc.Credentials{}, false
	}

	return *p.current, true
}

func (p *RefreshingProvider) store(creds svc.Credentials) {
	p.mutex.Lock()
	p.current = &creds
	p.mutex.Unlock()
}

func (p *RefreshingProvider) fromCache(ctx context.Context) (svc.Credentials, bool) {
	if p.cache == nil {
		return svc.Credentials{}, false
	}

	entry, err := p.cache.Get(ctx, p.cacheKey)
	if err != nil {
		return svc.Credentials{}, false
	}

	var creds svc.Credentials
	if err := json.Unmarshal(entry.Data, &creds); err != nil {
		p.logger.Warn("Discarding unreadable cached credentials", map[string]interface{}{"error": err.Error()})

		return svc.Credentials{}, false
	}

	return creds, p.usable(creds)
}

func (p *RefreshingProvider) toCache(ctx context.Context, creds svc.Credentials) {
	if p.cache == nil {
		return
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return
	}

	entry := &CacheEntry{Data: data}
	if creds.CanExpire() {
		entry.ExpiresAt = creds.Expires.Add(-constants.TokenExpirationBuffer)
	}

	if err := p.cache.Set(ctx, p.cacheKey, entry); err != nil {
		p.logger.Warn("Failed to cache credentials", map[string]interface{}{"error": err.Error()})
	}
}
