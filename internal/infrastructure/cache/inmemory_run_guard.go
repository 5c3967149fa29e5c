package cache

import (
	"context"
	"sync"
	"time"

	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
)

// InMemoryRunGuard keeps claimed sweep keys in process memory.
// It only guards a single worker instance; multi-instance deployments need RedisRunGuard.
type InMemoryRunGuard struct {
	mu        sync.Mutex
	claims    map[string]time.Time // key -> expiry
	now       func() time.Time
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// InMemoryOption configures an InMemoryRunGuard
type InMemoryOption func(*InMemoryRunGuard)

// WithClock replaces time.Now, for tests
func WithClock(clock shared.Clock) InMemoryOption {
	return func(g *InMemoryRunGuard) {
		g.now = clock.Now
	}
}

// NewInMemoryRunGuard creates the guard and starts its purge loop
func NewInMemoryRunGuard(opts ...InMemoryOption) *InMemoryRunGuard {
	g := &InMemoryRunGuard{
		claims: make(map[string]time.Time),
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.wg.Add(1)
	go g.purgeLoop(time.Minute)
	return g
}

// MarkProcessed claims key until now+ttl. An expired claim can be taken again.
func (g *InMemoryRunGuard) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if expiresAt, held := g.claims[key]; held && now.Before(expiresAt) {
		return false, nil
	}
	g.claims[key] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether key is currently claimed
func (g *InMemoryRunGuard) IsProcessed(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	expiresAt, held := g.claims[key]
	return held && g.now().Before(expiresAt), nil
}

// Close stops the purge loop. Safe to call more than once.
func (g *InMemoryRunGuard) Close() error {
	g.closeOnce.Do(func() {
		close(g.stop)
		g.wg.Wait()
	})
	return nil
}

func (g *InMemoryRunGuard) purgeLoop(every time.Duration) {
	defer g.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.purge()
		}
	}
}

func (g *InMemoryRunGuard) purge() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for key, expiresAt := range g.claims {
		if !now.Before(expiresAt) {
			delete(g.claims, key)
		}
	}
}

// Len returns the number of claims held, expired or not
func (g *InMemoryRunGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.claims)
}

var _ shared.IdempotencyStore = (*InMemoryRunGuard)(nil)
