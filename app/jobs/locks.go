package jobs

import (
	"context"
	"sync"
	"time"
)

// LockProvider guards job execution. Acquire returns false when another
// holder owns the lease.
type LockProvider interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

var _ LockProvider = (*MemoryLockProvider)(nil)

// MemoryLockProvider is the single-process default. Leases expire so a
// crashed holder cannot block a job forever.
type MemoryLockProvider struct {
	mu     sync.Mutex
	leases map[string]time.Time
}

func NewMemoryLockProvider() *MemoryLockProvider {
	return &MemoryLockProvider{leases: make(map[string]time.Time)}
}

func (p *MemoryLockProvider) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if expires, ok := p.leases[name]; ok && time.Now().Before(expires) {
		return false, nil
	}

	p.leases[name] = time.Now().Add(ttl)
	return true, nil
}

func (p *MemoryLockProvider) Release(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.leases, name)
	return nil
}
