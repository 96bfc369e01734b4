package memory

import (
	"context"
	"sync"
	"time"

	pr "github.com/propbooks/propbooks-go/provider"
)

// Memory is the default in-process provider: a mutex-guarded map with lazy
// TTL expiry and an optional background sweep. Suitable for a single-process
// client; use the redis provider to share a view cache across processes.
type Memory struct {
	mu sync.RWMutex
	m  map[string]entry

	maxEntries int

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ pr.Provider = (*Memory)(nil)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type Config struct {
	MaxEntries    int           // 0 = unbounded; new keys are rejected at the cap
	SweepInterval time.Duration // 0 = lazy expiry only
}

func New(cfg Config) *Memory {
	p := &Memory{
		m:          make(map[string]entry),
		maxEntries: cfg.MaxEntries,
	}
	if cfg.SweepInterval > 0 {
		p.ticker = time.NewTicker(cfg.SweepInterval)
		p.stopCh = make(chan struct{})
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-p.ticker.C:
					p.sweep()
				case <-p.stopCh:
					return
				}
			}
		}()
	}
	return p
}

func (p *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.RLock()
	e, ok := p.m[key]
	p.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		p.mu.Lock()
		// recheck under write lock; a fresh Set may have replaced the entry
		if cur, ok := p.m[key]; ok && !cur.exp.IsZero() && time.Now().After(cur.exp) {
			delete(p.m, key)
		}
		p.mu.Unlock()
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *Memory) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxEntries > 0 && len(p.m) >= p.maxEntries {
		if _, exists := p.m[key]; !exists {
			return false, nil // at capacity; reject new keys
		}
	}
	p.m[key] = entry{v: value, exp: exp}
	return true, nil
}

func (p *Memory) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *Memory) Close(_ context.Context) error {
	p.once.Do(func() {
		if p.stopCh != nil {
			close(p.stopCh)
			p.ticker.Stop()
			p.wg.Wait()
		}
	})
	return nil
}

// Len reports the number of live entries (expired-but-unswept included).
// Not part of the Provider interface; handy for tests and metrics.
func (p *Memory) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.m)
}

func (p *Memory) sweep() {
	now := time.Now()
	p.mu.Lock()
	for k, e := range p.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(p.m, k)
		}
	}
	p.mu.Unlock()
}
