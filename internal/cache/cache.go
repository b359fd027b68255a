package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Purge()
	Size() int
}

// Loader fills a cache miss.
type Loader[T any] func(ctx context.Context) (T, error)

// LoadingCache puts a singleflight group in front of a cache: concurrent
// misses for the same key run the loader once and share its result.
type LoadingCache[T any] struct {
	cache Cache[T]
	group singleflight.Group
	gen   uint64
	mu    sync.Mutex
}

func NewLoadingCache[T any](c Cache[T]) *LoadingCache[T] {
	return &LoadingCache[T]{cache: c}
}

// GetOrLoad returns the cached value for key or loads, stores and returns it.
// A load that started before an Invalidate is returned to its callers but not
// stored. The shared load runs detached from any one caller's cancellation; a
// caller whose ctx ends stops waiting without failing the others.
func (l *LoadingCache[T]) GetOrLoad(ctx context.Context, key string, load Loader[T]) (T, error) {
	var zero T
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}
	l.mu.Lock()
	gen := l.gen
	l.mu.Unlock()

	loadCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		value, err := load(loadCtx)
		if err != nil {
			return value, err
		}
		l.mu.Lock()
		if l.gen == gen {
			l.cache.Set(key, value)
		}
		l.mu.Unlock()
		return value, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Invalidate drops every cached entry and fences off loads in flight.
func (l *LoadingCache[T]) Invalidate() {
	l.mu.Lock()
	l.gen++
	l.cache.Purge()
	l.mu.Unlock()
}

// Manager handles cache lifecycle and cleanup
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	stopOnce    sync.Once
	started     bool
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

func NewManager() *Manager {
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup. Call before StartCleanup.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	m.started = true
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleaned := 0
			for _, c := range m.caches {
				cleaned += c.CleanExpired()
			}
			if cleaned > 0 {
				slog.Debug("Cache cleanup", "component", "cache", "removed", cleaned)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup routine and waits for it. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		if m.started {
			<-m.cleanupDone
		}
	})
}
